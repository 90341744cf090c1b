package fastapi

import (
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"

	"github.com/owasp-sbot/OSBot-Fast-API-sub000/logger"
	"github.com/owasp-sbot/OSBot-Fast-API-sub000/meta"
	"github.com/owasp-sbot/OSBot-Fast-API-sub000/pathschema"
	"github.com/owasp-sbot/OSBot-Fast-API-sub000/utils"
)

var one = &sync.Once{}
var wrapper *Wrapper = nil // 默认实例

type FastApi = Wrapper

// EventKind 事件类型
type EventKind string

const (
	StartupEvent  EventKind = "startup"
	ShutdownEvent EventKind = "shutdown"
)

// Event 启动和关闭事件
type Event struct {
	Fc   func()
	Type EventKind // 事件类型：startup 或 shutdown
}

// Wrapper 服务对象，本质是一个包装器
type Wrapper struct {
	conf       *Config       `description:"配置项"`
	app        *fiber.App    `description:"后端路由器"`
	logger     logger.Iface  `description:"日志"`
	pool       *sync.Pool    `description:"Context 资源池"`
	httpEvents *HttpEvents   `description:"最近的请求记录"`
	events     []*Event      `description:"启动和关闭事件"`
	routes     []*meta.Route `description:"通过应用注册的路由"`
	mounts     []*meta.Mount `description:"挂载的子应用"`
	setupOnce  sync.Once
	setupErr   error
	mu         sync.RWMutex
}

// New 实例化一个默认 Wrapper, 此方法与 Create 不能同时使用
// 与 Create 区别在于：Create 每次都会创建一个新的实例，New 多次调用获得的是同一个实例
func New(c ...Config) *Wrapper {
	one.Do(func() {
		conf := cleanConfig(c...)
		wrapper = Create(conf)
	})

	return wrapper
}

// Create 创建一个新的 Wrapper 服务
// 其存在目的在于在同一个应用里创建多个 Wrapper 实例, 例如作为子应用挂载
func Create(c Config) *Wrapper {
	conf := cleanConfig(c)

	f := &Wrapper{
		conf:       &conf,
		logger:     conf.Logger,
		httpEvents: NewHttpEvents(utils.Ternary(conf.HttpEventsDisabled, 0, conf.HttpEventsMax)),
		events:     make([]*Event, 0),
		routes:     make([]*meta.Route, 0),
		mounts:     make([]*meta.Mount, 0),
	}
	if f.logger == nil {
		l := logger.NewDefaultLogger().Named(conf.Title)
		// 非调试模式不输出 DEBUG 日志
		l.SetLevel(utils.Ternary(conf.Debug, logger.DebugLevel, logger.InfoLevel))
		f.logger = l
	}
	f.pool = &sync.Pool{
		New: func() any { return &Context{app: f} },
	}
	f.app = f.createFiberApp()

	return f
}

// ================================ meta.Table ================================

func (f *Wrapper) Title() string { return f.conf.Title }

func (f *Wrapper) Version() string { return f.conf.Version }

func (f *Wrapper) Description() string { return f.conf.Description }

// RouteTable 通过应用注册的全部路由, 包括默认路由
func (f *Wrapper) RouteTable() []*meta.Route {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return append([]*meta.Route{}, f.routes...)
}

// Mounts 挂载的子应用
func (f *Wrapper) Mounts() []*meta.Mount {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return append([]*meta.Mount{}, f.mounts...)
}

// RawRoutes 直接通过 App() 注册到 fiber 的路由, 不包含子应用和静态目录
func (f *Wrapper) RawRoutes() []*meta.Route {
	f.mu.RLock()
	known := make(map[string]struct{}, len(f.routes))
	excludes := make([]string, 0)
	for _, r := range f.routes {
		for _, m := range r.Methods {
			known[m+" "+pathschema.ToFiberPath(r.Path)] = struct{}{}
		}
		if r.Type == meta.Static || r.Type == meta.WebSocket {
			excludes = append(excludes, r.Path)
		}
	}
	for _, m := range f.mounts {
		excludes = append(excludes, m.Prefix)
	}
	f.mu.RUnlock()

	raws := make(map[string]*meta.Route)
	for _, fr := range f.app.GetRoutes(true) {
		if fr.Method == fiber.MethodHead || fr.Method == fiber.MethodConnect || fr.Method == fiber.MethodTrace {
			continue
		}
		if _, ok := known[fr.Method+" "+fr.Path]; ok {
			continue
		}
		if underAny(fr.Path, excludes) {
			continue
		}
		path := pathschema.ToTemplatePath(fr.Path)
		if r, ok := raws[path]; ok {
			if !utils.Has(r.Methods, fr.Method) {
				r.Methods = append(r.Methods, fr.Method)
			}
			continue
		}
		var handler any
		if len(fr.Handlers) > 0 {
			handler = fr.Handlers[len(fr.Handlers)-1]
		}
		raws[path] = &meta.Route{
			Name:    utils.Ternary(fr.Name != "", fr.Name, utils.ReflectFuncName(handler)),
			Methods: []string{fr.Method},
			Path:    path,
			Type:    meta.Raw,
			Handler: handler,
			Source:  handler,
		}
	}

	routes := make([]*meta.Route, 0, len(raws))
	for _, r := range raws {
		sort.Strings(r.Methods)
		routes = append(routes, r)
	}
	meta.SortRoutes(routes)
	return routes
}

func underAny(path string, prefixes []string) bool {
	for _, p := range prefixes {
		p = strings.TrimSuffix(p, "/")
		if p == "" || path == p || strings.HasPrefix(path, p+"/") {
			return true
		}
	}
	return false
}

// ================================ Api ================================

// Config 获取配置项的副本
func (f *Wrapper) Config() Config { return *f.conf }

func (f *Wrapper) Logger() logger.Iface { return f.logger }

// SetLogger 替换日志句柄，此操作必须在 Setup 之前进行
func (f *Wrapper) SetLogger(logger logger.Iface) *Wrapper {
	if logger != nil {
		f.logger = logger
	}
	return f
}

// App 获取底层的 fiber.App, 通过其直接注册的路由作为 raw 路由
func (f *Wrapper) App() *fiber.App { return f.app }

// Events 最近的请求记录
func (f *Wrapper) Events() *HttpEvents { return f.httpEvents }

// OnEvent 添加事件
//
//	@param	kind	事件类型，取值需为	"startup"/"shutdown"
//	@param	fs		func()		事件
func (f *Wrapper) OnEvent(kind EventKind, fc func()) *Wrapper {
	switch kind {
	case StartupEvent, ShutdownEvent:
		f.events = append(f.events, &Event{Type: kind, Fc: fc})
	default:
	}
	return f
}

// Use 添加中间件, 作用于此后注册到 fiber 的全部路由
func (f *Wrapper) Use(middleware ...fiber.Handler) *Wrapper {
	for _, m := range middleware {
		f.app.Use(m)
	}
	return f
}

// IncludeRoutes 注册路由集合
func (f *Wrapper) IncludeRoutes(routes ...*Routes) *Wrapper {
	for _, r := range routes {
		f.addRoutes(r.Routes()...)
	}
	return f
}

// IncludeRouter 注册一个路由组, 若路由组不符合要求则panic
//
//	@param	router	GroupRouter	路由组
func (f *Wrapper) IncludeRouter(router GroupRouter) *Wrapper {
	group := NewGroupRouteMeta(router)
	if err := group.Init(); err != nil {
		panic(fmt.Errorf("group-router: '%T' created failed, %v", router, err))
	}
	f.addRoutes(group.Routes()...)
	return f
}

// Mount 挂载子应用, 子应用的路由以 prefix 为前缀
func (f *Wrapper) Mount(prefix string, sub *Wrapper) *Wrapper {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.mounts = append(f.mounts, &meta.Mount{Prefix: pathschema.JoinPath(prefix, ""), Table: sub})
	return f
}

// Static 挂载静态文件目录
func (f *Wrapper) Static(prefix, dir string) *Wrapper {
	f.addRoutes(&meta.Route{
		Name:      "static",
		Methods:   []string{http.MethodGet},
		Path:      pathschema.JoinPath(prefix, ""),
		Type:      meta.Static,
		StaticDir: dir,
	})
	return f
}

// WebSocket 注册 websocket 路由
func (f *Wrapper) WebSocket(path string, handler func(conn *websocket.Conn), opts ...RouteOption) *Wrapper {
	route := &meta.Route{
		Name:    utils.ReflectFuncName(handler),
		Methods: []string{http.MethodGet},
		Path:    pathschema.JoinPath(path, ""),
		Type:    meta.WebSocket,
		Handler: handler,
		Source:  handler,
	}
	for _, opt := range opts {
		opt(route)
	}
	f.addRoutes(route)
	return f
}

func (f *Wrapper) addRoutes(routes ...*meta.Route) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.routes = append(f.routes, routes...)
}

// Routes 通过应用注册的 API 路由, 包括默认路由
func (f *Wrapper) Routes() []*meta.Route {
	return utils.SliceFilter(f.RouteTable(), func(r *meta.Route) bool { return r.Type == meta.APIRoute })
}

// RoutesPaths 全部路由地址, 已排序且去重
func (f *Wrapper) RoutesPaths() []string {
	paths := make([]string, 0)
	for _, r := range f.RouteTable() {
		paths = append(paths, r.Path)
	}
	for _, r := range f.RawRoutes() {
		paths = append(paths, r.Path)
	}
	for _, m := range f.Mounts() {
		for _, sp := range m.Table.(interface{ RoutesPaths() []string }).RoutesPaths() {
			paths = append(paths, pathschema.JoinPath(m.Prefix, sp))
		}
	}
	paths = utils.Unique(paths)
	sort.Strings(paths)
	return paths
}

// Setup 注册默认路由和文档, 并将全部路由绑定到 fiber, 多次调用仅首次有效
func (f *Wrapper) Setup() error {
	f.setupOnce.Do(func() {
		f.setupErr = f.setup()
	})
	return f.setupErr
}

func (f *Wrapper) setup() error {
	if err := f.conf.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if !f.conf.DefaultRoutesDisabled {
		f.IncludeRoutes(f.defaultRoutes())
	}
	if !f.conf.DocsDisabled {
		f.IncludeRoutes(f.docsRoutes())
	}

	for _, route := range f.RouteTable() {
		if err := f.bind(route); err != nil {
			return err
		}
	}

	for _, m := range f.Mounts() {
		sub, ok := m.Table.(*Wrapper)
		if !ok {
			continue
		}
		if err := sub.Setup(); err != nil {
			return fmt.Errorf("mount '%s': %w", m.Prefix, err)
		}
		f.app.Mount(m.Prefix, sub.app)
	}

	f.logger.Debug(
		"Setup finished, run at: " + utils.Ternary(f.conf.Debug, "Development", "Production"),
	)
	return nil
}

// 将路由绑定到 fiber
func (f *Wrapper) bind(route *meta.Route) error {
	path := pathschema.ToFiberPath(route.Path)
	switch route.Type {
	case meta.APIRoute:
		handler, err := f.routeHandler(route)
		if err != nil {
			return fmt.Errorf("route: '%s' bind failed, %w", route.ID(), err)
		}
		for _, m := range route.Methods {
			f.app.Add(m, path, handler)
		}
	case meta.Static:
		f.app.Static(path, route.StaticDir)
	case meta.WebSocket:
		handler, ok := route.Handler.(func(conn *websocket.Conn))
		if !ok {
			return fmt.Errorf("route: '%s' is not a websocket handler", route.ID())
		}
		f.app.Get(path, func(c *fiber.Ctx) error {
			if websocket.IsWebSocketUpgrade(c) {
				return c.Next()
			}
			return fiber.ErrUpgradeRequired
		}, websocket.New(handler))
	default:
		return fmt.Errorf("route: '%s' unsupported route type %s", route.ID(), route.Type)
	}
	return nil
}

// Test 测试客户端, 首次调用时完成 Setup
func (f *Wrapper) Test(req *http.Request, msTimeout ...int) (*http.Response, error) {
	if err := f.Setup(); err != nil {
		return nil, err
	}
	return f.app.Test(req, msTimeout...)
}

// Shutdown 平滑关闭
func (f *Wrapper) Shutdown() {
	// 执行关机前事件
	for _, event := range f.events {
		if event.Type == ShutdownEvent {
			event.Fc()
		}
	}

	timeout := time.Duration(f.conf.ShutdownTimeout) * time.Second
	if err := f.app.ShutdownWithTimeout(timeout); err != nil {
		f.logger.Error("shutdown failed: ", err)
	}
}

// Run 启动服务, 此方法会阻塞运行，因此必须放在main函数结尾
// 当 Interrupt 信号被触发时，首先执行“关机事件”，然后调用平滑关闭方法，关闭服务
func (f *Wrapper) Run(host, port string) {
	if err := f.Setup(); err != nil {
		panic(err)
	}

	// 执行启动前事件
	for _, event := range f.events {
		if event.Type == StartupEvent {
			event.Fc()
		}
	}

	addr := net.JoinHostPort(host, port)
	f.logger.Info("HTTP server listening on: " + addr)
	go func() {
		if err := f.app.Listen(addr); err != nil {
			f.logger.Error("HTTP server stopped: ", err)
			os.Exit(1)
		}
	}()

	// 关闭开关, buffered
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt)

	<-quit // 阻塞进程，直到接收到停止信号,准备关闭程序
	f.Shutdown()
}
