package monitoring

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"reflect"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/dmcache/mem/cache/directmapped"
	"github.com/sarchlab/dmcache/sim/clocking"
	"github.com/sarchlab/dmcache/sim/hooking"
	"github.com/sarchlab/dmcache/sim/timing"
)

type counterComp struct {
	count int
}

func (c *counterComp) Name() string {
	return "Counter"
}

func (c *counterComp) Inspect() any {
	return c.count
}

type stubDomain struct {
	hooking.HookableBase
	cycle uint64
	busy  bool
}

func (d *stubDomain) Name() string {
	return "Stub"
}

func (d *stubDomain) Cycle() uint64 {
	return d.cycle
}

func (d *stubDomain) Busy() bool {
	return d.busy
}

func (d *stubDomain) LimitReached() bool {
	return false
}

func (d *stubDomain) endCycle() {
	d.InvokeHook(hooking.HookCtx{
		Domain: d,
		Pos:    clocking.HookPosCycleEnd,
		Item:   d.cycle,
	})
	d.cycle++
}

type sampleStruct struct {
	field1 int
	field2 string
	field3 *sampleStruct
	field4 []sampleStruct
}

var _ = Describe("Monitor", func() {
	var (
		m *Monitor
	)

	BeforeEach(func() {
		m = NewMonitor()
	})

	It("should walk int fields", func() {
		s := &sampleStruct{
			field1: 1,
		}

		elem, err := m.walkFields(s, "field1")

		Expect(err).To(BeNil())
		Expect(elem.Kind()).To(Equal(reflect.Int))
		Expect(elem.Int()).To(Equal(int64(1)))
	})

	It("should walk string fields", func() {
		s := &sampleStruct{
			field2: "abc",
		}

		elem, err := m.walkFields(s, "field2")

		Expect(err).To(BeNil())
		Expect(elem.Kind()).To(Equal(reflect.String))
		Expect(elem.String()).To(Equal("abc"))
	})

	It("should walk recursively", func() {
		s := &sampleStruct{
			field3: &sampleStruct{
				field1: 1,
			},
		}

		elem, err := m.walkFields(s, "field3.field1")

		Expect(err).To(BeNil())
		Expect(elem.Int()).To(Equal(int64(1)))
	})

	It("should walk slice recursively", func() {
		s := &sampleStruct{
			field4: []sampleStruct{{
				field4: []sampleStruct{
					{field1: 1},
				},
			}, {}},
		}

		elem, err := m.walkFields(s, "field4.0.field4.0.field1")

		Expect(err).To(BeNil())
		Expect(elem.Kind()).To(Equal(reflect.Int))
		Expect(elem.Int()).To(Equal(int64(1)))
	})

	It("should reject missing fields and bad indices", func() {
		s := &sampleStruct{field4: []sampleStruct{{}}}

		_, err := m.walkFields(s, "field9")
		Expect(err).To(HaveOccurred())

		_, err = m.walkFields(s, "field4.3")
		Expect(err).To(HaveOccurred())

		_, err = m.walkFields(s, "field1.x")
		Expect(err).To(HaveOccurred())
	})

	It("should keep track of progress bars", func() {
		a := m.CreateProgressBar("A", 10)
		b := m.CreateProgressBar("B", 20)

		m.CompleteProgressBar(a)

		Expect(m.progressBars).To(ConsistOf(b))
		Expect(b.ID).NotTo(BeEmpty())
	})

	It("should copy component state at the refresh interval", func() {
		comp := &counterComp{}
		domain := &stubDomain{busy: true}

		m.WithRefreshInterval(4)
		m.RegisterComponent(comp)
		m.RegisterDomain(domain)
		m.Refresh()

		for i := 0; i < 3; i++ {
			comp.count++
			domain.endCycle()
		}

		c, _ := m.component("Counter")
		Expect(c).To(Equal(0))

		comp.count++
		domain.endCycle()

		c, _ = m.component("Counter")
		Expect(c).To(Equal(4))
		Expect(m.snapshot.Domains[0].Cycle).To(Equal(uint64(4)))
	})

	It("should copy the last cycle and requested refreshes", func() {
		comp := &counterComp{}
		domain := &stubDomain{busy: true}

		m.WithRefreshInterval(100)
		m.RegisterComponent(comp)
		m.RegisterDomain(domain)

		comp.count = 1
		m.refreshWanted.Store(true)
		domain.endCycle()

		c, _ := m.component("Counter")
		Expect(c).To(Equal(1))

		comp.count = 2
		domain.endCycle()
		c, _ = m.component("Counter")
		Expect(c).To(Equal(1))

		comp.count = 3
		domain.busy = false
		domain.endCycle()

		c, _ = m.component("Counter")
		Expect(c).To(Equal(3))
		Expect(m.snapshot.Domains[0]).To(Equal(
			domainRsp{Name: "Stub", Cycle: 3}))
	})
})

var _ = Describe("Monitor API", func() {
	var (
		m       *Monitor
		engine  *timing.SerialEngine
		cache   *directmapped.Comp
		handler http.Handler
	)

	get := func(path string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))

		return rec
	}

	BeforeEach(func() {
		var err error

		engine = timing.NewSerialEngine()
		cache, err = directmapped.MakeBuilder().Build("Cache")
		Expect(err).NotTo(HaveOccurred())

		domain := clocking.MakeBuilder().WithEngine(engine).Build("Domain")
		domain.Register(cache)

		m = NewMonitor()
		m.RegisterEngine(engine)
		m.RegisterComponent(cache)
		m.RegisterDomain(domain)

		handler = m.Router()
	})

	It("should report the current time", func() {
		rec := get("/api/now")

		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Body.String()).To(Equal(`{"now":0.0000000000}`))
	})

	It("should pause and continue the engine", func() {
		Expect(get("/api/pause").Code).To(Equal(http.StatusOK))
		Expect(get("/api/continue").Code).To(Equal(http.StatusOK))
	})

	It("should list components", func() {
		var names []string

		rec := get("/api/list_components")
		Expect(json.Unmarshal(rec.Body.Bytes(), &names)).To(Succeed())
		Expect(names).To(Equal([]string{"Cache"}))
	})

	It("should serialize a component", func() {
		Expect(get("/api/component/Cache").Code).To(Equal(http.StatusOK))
		Expect(get("/api/component/Nope").Code).To(Equal(http.StatusNotFound))
	})

	It("should show a field of a component", func() {
		req := `{"comp_name":"Cache","field_name":"Stats.Misses"}`
		rec := get("/api/field/" + url.PathEscape(req))

		Expect(rec.Code).To(Equal(http.StatusOK))

		var rsp fieldRsp
		Expect(json.Unmarshal(rec.Body.Bytes(), &rsp)).To(Succeed())
		Expect(rsp).To(Equal(fieldRsp{Type: "uint64", Value: "0"}))
	})

	It("should show a tag slot of a cache", func() {
		req := `{"comp_name":"Cache","field_name":"Lines.1.Valid"}`
		rec := get("/api/field/" + url.PathEscape(req))

		var rsp fieldRsp
		Expect(json.Unmarshal(rec.Body.Bytes(), &rsp)).To(Succeed())
		Expect(rsp).To(Equal(fieldRsp{Type: "bool", Value: "false"}))
	})

	It("should list cache lines", func() {
		var rsp linesRsp

		rec := get("/api/cache/Cache/lines?from=1&count=2")
		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(json.Unmarshal(rec.Body.Bytes(), &rsp)).To(Succeed())

		Expect(rsp.Cache).To(Equal("Cache"))
		Expect(rsp.State).To(Equal("IDLE"))
		Expect(rsp.Total).To(Equal(cache.Snapshot().Layout.NumLines()))
		Expect(rsp.Lines).To(HaveLen(2))
		Expect(rsp.Lines[0].Index).To(Equal(uint64(1)))
		Expect(rsp.Lines[1].Index).To(Equal(uint64(2)))
		Expect(rsp.Lines[0].Valid).To(BeFalse())
	})

	It("should list only valid cache lines on request", func() {
		var rsp linesRsp

		rec := get("/api/cache/Cache/lines?valid=1")
		Expect(json.Unmarshal(rec.Body.Bytes(), &rsp)).To(Succeed())
		Expect(rsp.Total).To(BeZero())
		Expect(rsp.Lines).To(BeEmpty())
	})

	It("should reject bad line ranges", func() {
		Expect(get("/api/cache/Cache/lines?from=-1").Code).
			To(Equal(http.StatusBadRequest))
		Expect(get("/api/cache/Nope/lines").Code).
			To(Equal(http.StatusNotFound))
	})

	It("should accept refresh requests", func() {
		Expect(get("/api/refresh").Code).To(Equal(http.StatusAccepted))
		Expect(m.refreshWanted.Load()).To(BeTrue())
	})

	It("should reject unknown fields", func() {
		req := `{"comp_name":"Cache","field_name":"nothing"}`
		rec := get("/api/field/" + url.PathEscape(req))

		Expect(rec.Code).To(Equal(http.StatusBadRequest))
	})

	It("should report clock domains", func() {
		var rsp []domainRsp

		rec := get("/api/domains")
		Expect(json.Unmarshal(rec.Body.Bytes(), &rsp)).To(Succeed())
		Expect(rsp).To(Equal([]domainRsp{{Name: "Domain"}}))
	})

	It("should report progress bars", func() {
		bar := m.CreateProgressBar("Accesses", 100)
		bar.IncrementFinished(30)

		rec := get("/api/progress")
		Expect(rec.Body.String()).To(ContainSubstring(`"finished":30`))
		Expect(rec.Body.String()).To(ContainSubstring(`"name":"Accesses"`))
	})

	It("should report resource usage", func() {
		rec := get("/api/resource")

		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Body.String()).To(ContainSubstring("memory_size"))
	})

	It("should export cache metrics", func() {
		rec := get("/metrics")
		body := rec.Body.String()

		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(body).To(ContainSubstring(
			`dmcache_requests_total{cache="Cache",kind="read"} 0`))
		Expect(body).To(ContainSubstring(
			`dmcache_state_cycles_total{cache="Cache",state="REFILL_DATA"} 0`))
		Expect(body).To(ContainSubstring(`dmcache_hit_rate{cache="Cache"} 0`))
	})

	It("should serve the status page", func() {
		rec := get("/")

		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Body.String()).To(ContainSubstring("dmcache monitor"))
	})

	It("should require a running server to open a browser", func() {
		Expect(m.URL()).To(BeEmpty())
		Expect(m.OpenBrowser()).To(HaveOccurred())
	})
})

var _ = Describe("ProgressHook", func() {
	It("should update the bar at the end of each cycle", func() {
		bar := &ProgressBar{Total: 10, InProgress: 5}
		done := uint64(0)
		h := &ProgressHook{Bar: bar, Finished: func() uint64 { return done }}

		done = 7
		h.Func(hooking.HookCtx{Pos: clocking.HookPosCycleStart})
		Expect(bar.Finished).To(BeZero())

		h.Func(hooking.HookCtx{Pos: clocking.HookPosCycleEnd})
		Expect(bar.Finished).To(Equal(uint64(7)))
		Expect(bar.InProgress).To(Equal(uint64(3)))
	})
})
