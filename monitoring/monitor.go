// Package monitoring turns a running simulation into a small web server that
// can pause and resume the engine, show component state and export metrics.
//
// HTTP handlers never touch the components. The monitor copies their state on
// the simulation goroutine at the end of clock cycles and serves the copy.
package monitoring

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"reflect"
	"runtime/pprof"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	// Enable profiling
	_ "net/http/pprof"

	"github.com/google/pprof/profile"
	"github.com/gorilla/mux"
	"github.com/pkg/browser"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shirou/gopsutil/process"
	"github.com/syifan/goseth"

	"github.com/sarchlab/dmcache/mem/cache/directmapped"
	"github.com/sarchlab/dmcache/monitoring/web"
	"github.com/sarchlab/dmcache/sim/clocking"
	"github.com/sarchlab/dmcache/sim/hooking"
	"github.com/sarchlab/dmcache/sim/id"
	"github.com/sarchlab/dmcache/sim/naming"
	"github.com/sarchlab/dmcache/sim/timing"
)

// An Inspectable component can copy its state. Inspect is only called on the
// goroutine that runs the simulation, between cycles.
type Inspectable interface {
	naming.Named
	Inspect() any
}

// A ClockDomain is a clock domain that can report its progress.
type ClockDomain interface {
	naming.Named
	hooking.Hookable
	Cycle() uint64
	Busy() bool
	LimitReached() bool
}

// DefaultRefreshInterval is the number of cycles between two snapshots.
const DefaultRefreshInterval = 1000

// Monitor can turn a simulation into a server and allows external monitoring
// controlling of the simulation.
type Monitor struct {
	engine          timing.Engine
	components      []Inspectable
	domains         []ClockDomain
	registry        *prometheus.Registry
	refreshInterval uint64
	portNumber      int
	url             string

	snapshotLock  sync.RWMutex
	snapshot      snapshot
	refreshWanted atomic.Bool

	progressBarsLock sync.Mutex
	progressBars     []*ProgressBar
}

// snapshot is the state served by the handlers.
type snapshot struct {
	Domains    []domainRsp
	Components map[string]any
}

// NewMonitor creates a new Monitor. Cache statistics are exported on
// /metrics.
func NewMonitor() *Monitor {
	m := &Monitor{
		registry:        prometheus.NewRegistry(),
		refreshInterval: DefaultRefreshInterval,
	}
	m.registry.MustRegister(NewCacheCollector(m))

	return m
}

// WithPortNumber sets the port number of the monitor.
func (m *Monitor) WithPortNumber(portNumber int) *Monitor {
	if portNumber < 1000 {
		fmt.Fprintf(os.Stderr,
			"Port number %d is assigned to the monitoring server, "+
				"which is not allowed. Using a random port instead.\n", portNumber)
		portNumber = 0
	}

	m.portNumber = portNumber

	return m
}

// WithRefreshInterval sets how many cycles pass between two snapshots. The
// last cycle before a domain goes idle is always captured.
func (m *Monitor) WithRefreshInterval(cycles uint64) *Monitor {
	if cycles == 0 {
		cycles = 1
	}

	m.refreshInterval = cycles

	return m
}

// RegisterEngine registers the engine that is used in the simulation.
func (m *Monitor) RegisterEngine(e timing.Engine) {
	m.engine = e
}

// RegisterComponent registers a component to be monitored.
func (m *Monitor) RegisterComponent(c Inspectable) {
	m.components = append(m.components, c)
}

// RegisterDomain registers a clock domain. Snapshots are taken at the end of
// its cycles.
func (m *Monitor) RegisterDomain(d ClockDomain) {
	m.domains = append(m.domains, d)
	d.AcceptHook(&refreshHook{monitor: m, domain: d})
}

// RegisterCollector adds a metrics collector to the /metrics endpoint.
func (m *Monitor) RegisterCollector(c prometheus.Collector) error {
	return m.registry.Register(c)
}

// Refresh copies the state of all registered components and domains. It
// must not run while the simulation is evaluating a cycle.
func (m *Monitor) Refresh() {
	m.refresh(nil, 0)
}

func (m *Monitor) refresh(trigger ClockDomain, cycles uint64) {
	s := snapshot{
		Domains:    make([]domainRsp, 0, len(m.domains)),
		Components: make(map[string]any, len(m.components)),
	}

	for _, d := range m.domains {
		rsp := domainRsp{
			Name:         d.Name(),
			Cycle:        d.Cycle(),
			Busy:         d.Busy(),
			LimitReached: d.LimitReached(),
		}

		if d == trigger {
			rsp.Cycle = cycles
		}

		s.Domains = append(s.Domains, rsp)
	}

	for _, c := range m.components {
		s.Components[c.Name()] = c.Inspect()
	}

	m.snapshotLock.Lock()
	m.snapshot = s
	m.snapshotLock.Unlock()
}

func (m *Monitor) component(name string) (any, bool) {
	m.snapshotLock.RLock()
	defer m.snapshotLock.RUnlock()

	c, ok := m.snapshot.Components[name]

	return c, ok
}

// CacheStats returns the statistics of every registered cache as of the last
// snapshot.
func (m *Monitor) CacheStats() map[string]directmapped.Stats {
	m.snapshotLock.RLock()
	defer m.snapshotLock.RUnlock()

	stats := make(map[string]directmapped.Stats)
	for name, c := range m.snapshot.Components {
		if s, ok := c.(*directmapped.Snapshot); ok {
			stats[name] = s.Stats
		}
	}

	return stats
}

// refreshHook takes snapshots at the end of the cycles of a domain.
type refreshHook struct {
	monitor *Monitor
	domain  ClockDomain
}

func (h *refreshHook) Func(ctx hooking.HookCtx) {
	if ctx.Pos != clocking.HookPosCycleEnd {
		return
	}

	m := h.monitor
	cycle := ctx.Item.(uint64)

	wanted := m.refreshWanted.Swap(false)
	if !wanted && (cycle+1)%m.refreshInterval != 0 && h.domain.Busy() {
		return
	}

	m.refresh(h.domain, cycle+1)
}

// CreateProgressBar creates a new progress bar.
func (m *Monitor) CreateProgressBar(name string, total uint64) *ProgressBar {
	bar := &ProgressBar{
		ID:        id.Generate(),
		Name:      name,
		StartTime: time.Now(),
		Total:     total,
	}

	m.progressBarsLock.Lock()
	defer m.progressBarsLock.Unlock()

	m.progressBars = append(m.progressBars, bar)

	return bar
}

// CompleteProgressBar removes a bar to be shown on the webpage.
func (m *Monitor) CompleteProgressBar(pb *ProgressBar) {
	m.progressBarsLock.Lock()
	defer m.progressBarsLock.Unlock()

	newBars := make([]*ProgressBar, 0, len(m.progressBars))
	for _, b := range m.progressBars {
		if b != pb {
			newBars = append(newBars, b)
		}
	}

	m.progressBars = newBars
}

// Router takes a first snapshot and returns the handler serving the
// monitoring API, the metrics and the web page.
func (m *Monitor) Router() *mux.Router {
	m.Refresh()

	r := mux.NewRouter()

	r.HandleFunc("/api/pause", m.pauseEngine)
	r.HandleFunc("/api/continue", m.continueEngine)
	r.HandleFunc("/api/refresh", m.requestRefresh)
	r.HandleFunc("/api/now", m.now)
	r.HandleFunc("/api/run", m.run)
	r.HandleFunc("/api/list_components", m.listComponents)
	r.HandleFunc("/api/component/{name}", m.listComponentDetails)
	r.HandleFunc("/api/field/{json}", m.listFieldValue)
	r.HandleFunc("/api/cache/{name}/lines", m.listCacheLines)
	r.HandleFunc("/api/domains", m.listDomains)
	r.HandleFunc("/api/progress", m.listProgressBars)
	r.HandleFunc("/api/resource", m.listResources)
	r.HandleFunc("/api/profile", m.collectProfile)
	r.Handle("/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
	r.PathPrefix("/").Handler(http.FileServer(web.GetAssets()))

	return r
}

// StartServer starts the monitor as a web server with a custom port if wanted.
func (m *Monitor) StartServer() {
	router := m.Router()

	actualPort := ":0"
	if m.portNumber > 1000 {
		actualPort = ":" + strconv.Itoa(m.portNumber)
	}

	listener, err := net.Listen("tcp", actualPort)
	dieOnErr(err)

	m.url = fmt.Sprintf("http://localhost:%d",
		listener.Addr().(*net.TCPAddr).Port)
	fmt.Fprintf(os.Stderr, "Monitoring simulation with %s\n", m.url)

	go func() {
		err := http.Serve(listener, router)
		dieOnErr(err)
	}()
}

// URL returns the address of the running server, or an empty string if the
// server is not started.
func (m *Monitor) URL() string {
	return m.url
}

// OpenBrowser opens the monitoring page in the default browser.
func (m *Monitor) OpenBrowser() error {
	if m.url == "" {
		return fmt.Errorf("monitoring server is not started")
	}

	return browser.OpenURL(m.url)
}

func (m *Monitor) pauseEngine(w http.ResponseWriter, _ *http.Request) {
	m.engine.Pause()
	m.refreshWanted.Store(true)

	_, err := w.Write(nil)
	dieOnErr(err)
}

func (m *Monitor) continueEngine(w http.ResponseWriter, _ *http.Request) {
	m.engine.Continue()

	_, err := w.Write(nil)
	dieOnErr(err)
}

func (m *Monitor) requestRefresh(w http.ResponseWriter, _ *http.Request) {
	m.refreshWanted.Store(true)
	w.WriteHeader(http.StatusAccepted)
}

func (m *Monitor) now(w http.ResponseWriter, _ *http.Request) {
	now := m.engine.CurrentTime()
	fmt.Fprintf(w, "{\"now\":%.10f}", now)
}

func (m *Monitor) run(_ http.ResponseWriter, _ *http.Request) {
	go func() {
		err := m.engine.Run()
		if err != nil {
			panic(err)
		}
	}()
}

func (m *Monitor) listComponents(w http.ResponseWriter, _ *http.Request) {
	names := make([]string, 0, len(m.components))
	for _, c := range m.components {
		names = append(names, c.Name())
	}

	writeJSON(w, names)
}

func (m *Monitor) listComponentDetails(w http.ResponseWriter, r *http.Request) {
	component := m.findComponentOr404(w, mux.Vars(r)["name"])
	if component == nil {
		return
	}

	serializer := goseth.NewSerializer()
	serializer.SetRoot(component)
	serializer.SetMaxDepth(1)
	err := serializer.Serialize(w)

	dieOnErr(err)
}

type fieldReq struct {
	CompName  string `json:"comp_name,omitempty"`
	FieldName string `json:"field_name,omitempty"`
}

type fieldRsp struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

func (m *Monitor) listFieldValue(w http.ResponseWriter, r *http.Request) {
	req := fieldReq{}

	err := json.Unmarshal([]byte(mux.Vars(r)["json"]), &req)
	if err != nil {
		badRequest(w, err)
		return
	}

	component := m.findComponentOr404(w, req.CompName)
	if component == nil {
		return
	}

	elem, err := m.walkFields(component, req.FieldName)
	if err != nil {
		badRequest(w, err)
		return
	}

	writeJSON(w, fieldRsp{
		Type:  elem.Type().String(),
		Value: fmt.Sprintf("%v", elem),
	})
}

type linesRsp struct {
	Cache string                      `json:"cache"`
	State string                      `json:"state"`
	Total int                         `json:"total"`
	Lines []directmapped.LineSnapshot `json:"lines"`
}

// listCacheLines serves the tag slots and lines of a cache. The query
// parameters from and count select a range of lines; only valid lines are
// listed if valid=1.
func (m *Monitor) listCacheLines(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	component := m.findComponentOr404(w, name)
	if component == nil {
		return
	}

	cache, ok := component.(*directmapped.Snapshot)
	if !ok {
		badRequest(w, fmt.Errorf("%s is not a cache", name))
		return
	}

	query := r.URL.Query()

	from, err := intParam(query.Get("from"), 0)
	if err != nil {
		badRequest(w, err)
		return
	}

	count, err := intParam(query.Get("count"), len(cache.Lines))
	if err != nil {
		badRequest(w, err)
		return
	}

	lines := cache.Lines
	if query.Get("valid") == "1" {
		lines = make([]directmapped.LineSnapshot, 0, len(cache.Lines))
		for _, l := range cache.Lines {
			if l.Valid {
				lines = append(lines, l)
			}
		}
	}

	total := len(lines)
	from = min(from, total)
	lines = lines[from:min(from+count, total)]

	writeJSON(w, linesRsp{
		Cache: name,
		State: cache.State,
		Total: total,
		Lines: lines,
	})
}

func intParam(value string, fallback int) (int, error) {
	if value == "" {
		return fallback, nil
	}

	n, err := strconv.Atoi(value)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%q is not a non-negative integer", value)
	}

	return n, nil
}

type domainRsp struct {
	Name         string `json:"name"`
	Cycle        uint64 `json:"cycle"`
	Busy         bool   `json:"busy"`
	LimitReached bool   `json:"limit_reached"`
}

func (m *Monitor) listDomains(w http.ResponseWriter, _ *http.Request) {
	m.snapshotLock.RLock()
	rsp := append([]domainRsp(nil), m.snapshot.Domains...)
	m.snapshotLock.RUnlock()

	writeJSON(w, rsp)
}

type fieldFormatError struct {
	field string
}

func (e fieldFormatError) Error() string {
	return fmt.Sprintf("cannot walk to field %q", e.field)
}

// walkFields follows a dot-separated path of struct field names and slice
// indices.
func (m *Monitor) walkFields(comp any, fields string) (reflect.Value, error) {
	elem := reflect.ValueOf(comp)

	fieldNames := strings.Split(fields, ".")

	for len(fieldNames) > 0 {
		switch elem.Kind() {
		case reflect.Ptr, reflect.Interface:
			elem = elem.Elem()
		case reflect.Struct:
			elem = elem.FieldByName(fieldNames[0])
			if !elem.IsValid() {
				return elem, fieldFormatError{field: fieldNames[0]}
			}

			fieldNames = fieldNames[1:]
		case reflect.Slice, reflect.Array:
			index, err := strconv.Atoi(fieldNames[0])
			if err != nil || index < 0 || index >= elem.Len() {
				return elem, fieldFormatError{field: fieldNames[0]}
			}

			elem = elem.Index(index)
			fieldNames = fieldNames[1:]
		default:
			return elem, fieldFormatError{field: fieldNames[0]}
		}
	}

	if elem.Kind() == reflect.Ptr {
		elem = elem.Elem()
	}

	return elem, nil
}

func (m *Monitor) findComponentOr404(w http.ResponseWriter, name string) any {
	component, ok := m.component(name)
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		_, err := w.Write([]byte("Component not found"))
		dieOnErr(err)

		return nil
	}

	return component
}

func (m *Monitor) listProgressBars(w http.ResponseWriter, _ *http.Request) {
	m.progressBarsLock.Lock()
	rsp := make([]progressRsp, 0, len(m.progressBars))
	for _, b := range m.progressBars {
		rsp = append(rsp, b.snapshot())
	}
	m.progressBarsLock.Unlock()

	sort.Slice(rsp, func(i, j int) bool {
		return rsp[i].StartTime.Before(rsp[j].StartTime)
	})

	writeJSON(w, rsp)
}

type resourceRsp struct {
	CPUPercent float64 `json:"cpu_percent"`
	MemorySize uint64  `json:"memory_size"`
}

func (m *Monitor) listResources(w http.ResponseWriter, _ *http.Request) {
	pid := os.Getpid()
	process, err := process.NewProcess(int32(pid))
	dieOnErr(err)

	cpuPercent, err := process.CPUPercent()
	dieOnErr(err)

	memorySize, err := process.MemoryInfo()
	dieOnErr(err)

	writeJSON(w, resourceRsp{
		CPUPercent: cpuPercent,
		MemorySize: memorySize.RSS,
	})
}

func (m *Monitor) collectProfile(w http.ResponseWriter, _ *http.Request) {
	buf := bytes.NewBuffer(nil)

	err := pprof.StartCPUProfile(buf)
	dieOnErr(err)

	time.Sleep(time.Second)

	pprof.StopCPUProfile()

	prof, err := profile.ParseData(buf.Bytes())
	dieOnErr(err)

	writeJSON(w, prof)
}

func badRequest(w http.ResponseWriter, err error) {
	w.WriteHeader(http.StatusBadRequest)
	fmt.Fprintf(w, "Error: %s", err)
}

func writeJSON(w http.ResponseWriter, v any) {
	bytes, err := json.Marshal(v)
	dieOnErr(err)

	w.Header().Set("Content-Type", "application/json")
	_, err = w.Write(bytes)
	dieOnErr(err)
}

func dieOnErr(err error) {
	if err != nil {
		log.Panic(err)
	}
}
