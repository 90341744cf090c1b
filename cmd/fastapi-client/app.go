package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	fastapi "github.com/owasp-sbot/OSBot-Fast-API-sub000"
	"github.com/owasp-sbot/OSBot-Fast-API-sub000/clientgen"
	"github.com/owasp-sbot/OSBot-Fast-API-sub000/contract"
	"github.com/owasp-sbot/OSBot-Fast-API-sub000/logger"
)

// EnvPrefix 命令行参数对应的环境变量前缀: --api-key-value => FAST_API_CLIENT_API_KEY_VALUE
const EnvPrefix = "FAST_API_CLIENT"

var ErrEmptySource = errors.New("contract source is empty")

type options struct {
	Source      string        `description:"服务地址或契约文件"`
	Name        string        `description:"客户端名称, 默认为服务名"`
	Output      string        `description:"输出目录"`
	Format      string        `description:"契约格式"`
	APIKeyName  string        `description:"API Key 请求头"`
	APIKeyValue string        `description:"API Key 的值"`
	Timeout     time.Duration `description:"请求超时"`
	Quiet       bool          `description:"不输出日志"`
}

func newRootCmd() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:          "fastapi-client <url|file>",
		Short:        "Generate a python client from a service contract",
		Version:      version,
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			fastapi.LoadEnvFiles(fastapi.EnvFiles...)
			return v.BindPFlags(cmd.Flags())
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := &options{
				Source:      args[0],
				Name:        v.GetString("name"),
				Output:      v.GetString("output"),
				Format:      v.GetString("format"),
				APIKeyName:  v.GetString("api-key-name"),
				APIKeyValue: v.GetString("api-key-value"),
				Timeout:     v.GetDuration("timeout"),
				Quiet:       v.GetBool("quiet"),
			}
			// 与服务端共用 API Key 配置
			if opts.APIKeyName == "" {
				opts.APIKeyName = os.Getenv(fastapi.EnvName("auth.api_key.name"))
			}
			if opts.APIKeyValue == "" {
				opts.APIKeyValue = os.Getenv(fastapi.EnvName("auth.api_key.value"))
			}

			log := logger.NewLogger(cmd.ErrOrStderr(), "fastapi-client ", 0)
			if opts.Quiet {
				log = logger.NewDiscardLogger()
			}
			return run(opts, log)
		},
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	flags := cmd.Flags()
	flags.StringP("name", "n", "", "client name, defaults to the service name")
	flags.StringP("output", "o", ".", "output directory")
	flags.StringP("format", "f", "", "contract format: json, yaml or msgpack (default by file extension)")
	flags.String("api-key-name", "", "api key header sent to the service")
	flags.String("api-key-value", "", "api key value sent to the service")
	flags.Duration("timeout", 10*time.Second, "request timeout")
	flags.BoolP("quiet", "q", false, "disable logging")

	return cmd
}

func run(opts *options, log *logger.DefaultLogger) error {
	sc, err := loadContract(opts)
	if err != nil {
		return err
	}
	log.Infof("contract '%s' loaded: %d modules, %d endpoints", sc.ServiceName, len(sc.Modules), len(sc.Endpoints))

	files, err := clientgen.NewGenerator(opts.Name).Generate(sc)
	if err != nil {
		return err
	}
	if err = clientgen.WriteTo(opts.Output, files); err != nil {
		return fmt.Errorf("write client: %w", err)
	}
	log.Infof("%d files written to '%s'", len(files), opts.Output)

	return nil
}

// 从服务地址或文件加载契约
func loadContract(opts *options) (*contract.ServiceContract, error) {
	if opts.Source == "" {
		return nil, ErrEmptySource
	}
	if isURL(opts.Source) {
		format, err := contract.ParseFormat(opts.Format)
		if err != nil {
			return nil, err
		}
		data, err := fetchContract(opts, format)
		if err != nil {
			return nil, err
		}
		return contract.Load(data, format)
	}

	format, err := formatOf(opts.Source, opts.Format)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(opts.Source)
	if err != nil {
		return nil, err
	}
	return contract.Load(data, format)
}

func isURL(source string) bool {
	return strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://")
}

// 确定契约文件的格式, 未指定时由扩展名判断
func formatOf(filename, format string) (contract.Format, error) {
	if format != "" {
		return contract.ParseFormat(format)
	}
	ext := strings.TrimPrefix(filepath.Ext(filename), ".")
	if ext == "" {
		return contract.JSON, nil
	}
	return contract.ParseFormat(strings.ToLower(ext))
}

// ContractURL 服务契约的获取地址
//
//	http://127.0.0.1:8000/ => http://127.0.0.1:8000/config/contract?format=json
func ContractURL(service string, format contract.Format) string {
	return strings.TrimSuffix(service, "/") + fastapi.ConfigPrefix + "/contract?format=" + string(format)
}

func fetchContract(opts *options, format contract.Format) ([]byte, error) {
	agent := fiber.Get(ContractURL(opts.Source, format))
	if opts.APIKeyName != "" && opts.APIKeyValue != "" {
		agent.Set(opts.APIKeyName, opts.APIKeyValue)
	}
	if opts.Timeout > 0 {
		agent.Timeout(opts.Timeout)
	}

	code, body, errs := agent.Bytes()
	if len(errs) > 0 {
		return nil, fmt.Errorf("fetch contract: %w", errors.Join(errs...))
	}
	if code != fiber.StatusOK {
		return nil, fmt.Errorf("fetch contract: status %d: %s", code, body)
	}
	return body, nil
}
