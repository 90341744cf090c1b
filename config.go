package fastapi

import (
	"errors"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/owasp-sbot/OSBot-Fast-API-sub000/godantic"
	"github.com/owasp-sbot/OSBot-Fast-API-sub000/logger"
)

// EnvPrefix 环境变量前缀, 层级之间以 __ 分隔
const EnvPrefix = "FAST_API"

const (
	DefaultTitle           = "FastAPI"
	DefaultVersion         = "v0.1.0"
	DefaultDescription     = "FastAPI Application"
	DefaultHttpEventsMax   = 50
	DefaultShutdownTimeout = 5
	DefaultAPIKeyName      = "X-API-Key"
)

// EnvFiles 读取环境变量前加载的文件, 不存在的文件被忽略, 已存在的变量不会被覆盖
var EnvFiles = []string{".env", ".env.local"}

type Config struct {
	Logger                logger.Iface `json:"-" description:"日志"`
	Title                 string       `json:"title,omitempty" description:"APP标题"`
	Version               string       `json:"version,omitempty" description:"APP版本号"`
	Description           string       `json:"description,omitempty" description:"APP描述"`
	BasePath              string       `json:"base_path,omitempty" description:"服务的根路径, 用于文档和客户端"`
	AllowOrigins          string       `json:"allow_origins,omitempty" description:"CORS 允许的来源, 逗号分隔"`
	APIKeyName            string       `json:"api_key_name,omitempty" description:"API Key 的请求头/Cookie 名称" validate:"required_if=EnableAPIKey true"`
	APIKeyValue           string       `json:"-" description:"API Key 的值" validate:"required_if=EnableAPIKey true"`
	HttpEventsMax         int          `json:"http_events_max,omitempty" description:"记录的最近请求数量" validate:"gte=0"`
	ShutdownTimeout       int          `json:"shutdown_timeout,omitempty" description:"平滑关机,单位秒" validate:"gte=0"`
	Debug                 bool         `json:"debug,omitempty" description:"调试模式, 500 响应会返回错误信息"`
	EnableCORS            bool         `json:"enable_cors,omitempty" description:"启用 CORS"`
	EnableAPIKey          bool         `json:"enable_api_key,omitempty" description:"启用 API Key 认证"`
	DefaultRoutesDisabled bool         `json:"default_routes_disabled,omitempty" description:"禁用 /config/* 默认路由"`
	DocsDisabled          bool         `json:"docs_disabled,omitempty" description:"禁用自动文档"`
	HttpEventsDisabled    bool         `json:"http_events_disabled,omitempty" description:"不记录请求, 仍会生成请求ID"`
}

func cleanConfig(confs ...Config) Config {
	conf := Config{
		Title:           DefaultTitle,
		Version:         DefaultVersion,
		Description:     DefaultDescription,
		AllowOrigins:    "*",
		HttpEventsMax:   DefaultHttpEventsMax,
		ShutdownTimeout: DefaultShutdownTimeout,
	}
	if len(confs) == 0 {
		return conf
	}

	c := confs[0]
	if c.Title != "" {
		conf.Title = c.Title
	}
	if c.Version != "" {
		conf.Version = c.Version
	}
	if c.Description != "" {
		conf.Description = c.Description
	}
	if c.AllowOrigins != "" {
		conf.AllowOrigins = c.AllowOrigins
	}
	if c.HttpEventsMax != 0 {
		conf.HttpEventsMax = c.HttpEventsMax
	}
	if c.ShutdownTimeout != 0 {
		conf.ShutdownTimeout = c.ShutdownTimeout
	}
	conf.Logger = c.Logger
	conf.BasePath = c.BasePath
	conf.APIKeyName = c.APIKeyName
	conf.APIKeyValue = c.APIKeyValue
	conf.Debug = c.Debug
	conf.EnableCORS = c.EnableCORS
	conf.EnableAPIKey = c.EnableAPIKey
	conf.DefaultRoutesDisabled = c.DefaultRoutesDisabled
	conf.DocsDisabled = c.DocsDisabled
	conf.HttpEventsDisabled = c.HttpEventsDisabled
	if conf.EnableAPIKey && conf.APIKeyName == "" {
		conf.APIKeyName = DefaultAPIKeyName
	}

	return conf
}

// Validate 校验配置项
func (c Config) Validate() error {
	errs := godantic.Validate(&c)
	if len(errs) == 0 {
		return nil
	}
	return godantic.NewHTTPValidationError(errs...)
}

// 配置项与环境变量的对应关系, 环境变量名为 FAST_API__ + 大写的键, "." 替换为 "__"
var envKeys = []string{
	"title",
	"version",
	"description",
	"base_path",
	"debug",
	"enable_cors",
	"allow_origins",
	"enable_api_key",
	"auth.api_key.name",
	"auth.api_key.value",
	"http_events_max",
	"shutdown_timeout",
	"default_routes_disabled",
	"docs_disabled",
	"http_events_disabled",
}

// EnvName 获取配置键对应的环境变量名
//
//	auth.api_key.name	=> FAST_API__AUTH__API_KEY__NAME
func EnvName(key string) string {
	return EnvPrefix + "__" + strings.ToUpper(strings.ReplaceAll(key, ".", "__"))
}

// LoadEnvFiles 加载 .env 文件, 文件不存在时忽略
func LoadEnvFiles(files ...string) {
	for _, file := range files {
		if _, err := os.Stat(file); err != nil {
			continue
		}
		_ = godotenv.Load(file)
	}
}

// ConfigFromEnv 从环境变量创建配置, 未设置的项采用默认值
//
// 当 FAST_API__AUTH__API_KEY__NAME 和 FAST_API__AUTH__API_KEY__VALUE 均存在时, 自动启用 API Key 认证.
func ConfigFromEnv(base ...Config) (Config, error) {
	LoadEnvFiles(EnvFiles...)

	v := viper.New()
	for _, key := range envKeys {
		if err := v.BindEnv(key, EnvName(key)); err != nil {
			return Config{}, err
		}
	}

	conf := cleanConfig(base...)
	if v.IsSet("title") {
		conf.Title = v.GetString("title")
	}
	if v.IsSet("version") {
		conf.Version = v.GetString("version")
	}
	if v.IsSet("description") {
		conf.Description = v.GetString("description")
	}
	if v.IsSet("base_path") {
		conf.BasePath = v.GetString("base_path")
	}
	if v.IsSet("allow_origins") {
		conf.AllowOrigins = v.GetString("allow_origins")
	}
	if v.IsSet("http_events_max") {
		conf.HttpEventsMax = v.GetInt("http_events_max")
	}
	if v.IsSet("shutdown_timeout") {
		conf.ShutdownTimeout = v.GetInt("shutdown_timeout")
	}
	conf.Debug = conf.Debug || v.GetBool("debug")
	conf.EnableCORS = conf.EnableCORS || v.GetBool("enable_cors")
	conf.DefaultRoutesDisabled = conf.DefaultRoutesDisabled || v.GetBool("default_routes_disabled")
	conf.DocsDisabled = conf.DocsDisabled || v.GetBool("docs_disabled")
	conf.HttpEventsDisabled = conf.HttpEventsDisabled || v.GetBool("http_events_disabled")

	if name := v.GetString("auth.api_key.name"); name != "" {
		conf.APIKeyName = name
	}
	if value := v.GetString("auth.api_key.value"); value != "" {
		conf.APIKeyValue = value
	}
	conf.EnableAPIKey = conf.EnableAPIKey || v.GetBool("enable_api_key") ||
		(conf.APIKeyName != "" && conf.APIKeyValue != "")
	if conf.EnableAPIKey && conf.APIKeyName == "" {
		conf.APIKeyName = DefaultAPIKeyName
	}

	if err := conf.Validate(); err != nil {
		return conf, errors.Join(ErrInvalidConfig, err)
	}
	return conf, nil
}
