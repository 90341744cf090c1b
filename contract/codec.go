package contract

import (
	"bytes"
	"fmt"

	"github.com/goccy/go-yaml"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/owasp-sbot/OSBot-Fast-API-sub000/utils"
)

// Format 契约的序列化格式
type Format string

const (
	JSON    Format = "json"
	YAML    Format = "yaml"
	Msgpack Format = "msgpack"
)

// Formats 支持的全部格式
var Formats = []Format{JSON, YAML, Msgpack}

// ParseFormat 解析格式名称, yml 视为 yaml
func ParseFormat(name string) (Format, error) {
	switch name {
	case "json", "":
		return JSON, nil
	case "yaml", "yml":
		return YAML, nil
	case "msgpack", "mp":
		return Msgpack, nil
	}
	return "", fmt.Errorf("contract: unsupported format '%s'", name)
}

// ContentType 格式对应的 MIME 类型
func (f Format) ContentType() string {
	switch f {
	case YAML:
		return "application/yaml"
	case Msgpack:
		return "application/msgpack"
	}
	return "application/json"
}

// Marshal 序列化服务契约
func Marshal(sc *ServiceContract, format Format) ([]byte, error) {
	switch format {
	case JSON:
		return utils.JsonMarshal(sc)
	case YAML:
		return yaml.Marshal(sc)
	case Msgpack:
		var buf bytes.Buffer
		enc := msgpack.NewEncoder(&buf)
		enc.SetCustomStructTag("json")
		if err := enc.Encode(sc); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	}
	return nil, fmt.Errorf("contract: unsupported format '%s'", format)
}

// Load 反序列化服务契约
func Load(data []byte, format Format) (*ServiceContract, error) {
	sc := &ServiceContract{}
	var err error
	switch format {
	case JSON:
		err = utils.JsonUnmarshal(data, sc)
	case YAML:
		err = yaml.Unmarshal(data, sc)
	case Msgpack:
		dec := msgpack.NewDecoder(bytes.NewReader(data))
		dec.SetCustomStructTag("json")
		err = dec.Decode(sc)
	default:
		return nil, fmt.Errorf("contract: unsupported format '%s'", format)
	}
	if err != nil {
		return nil, fmt.Errorf("contract: load %s: %w", format, err)
	}
	return sc, nil
}

func (sc *ServiceContract) ToJSON() ([]byte, error) { return Marshal(sc, JSON) }

func (sc *ServiceContract) ToYAML() ([]byte, error) { return Marshal(sc, YAML) }

func (sc *ServiceContract) ToMsgpack() ([]byte, error) { return Marshal(sc, Msgpack) }
