package sim_test

import (
	"context"
	"errors"
	"image/color"
	"io"
	"math"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/forcegraph/internal/compute"
	"github.com/san-kum/forcegraph/internal/config"
	"github.com/san-kum/forcegraph/internal/dynamo"
	"github.com/san-kum/forcegraph/internal/edges"
	"github.com/san-kum/forcegraph/internal/sim"
)

var square = [][2]float64{{0, 0}, {1, 0}, {1, 1}, {0, 1}}

var _ = Describe("Session", func() {
	var (
		ctx      context.Context
		log      *callLog
		fs       *fakeSimulator
		fr       *fakeRenderer
		backend  *fakeSimBackend
		recorder *eventRecorder
		session  *sim.Session
	)

	bg := color.RGBA{R: 10, G: 20, B: 30, A: 255}

	newSession := func(opts ...sim.Option) *sim.Session {
		opts = append([]sim.Option{sim.WithListener(recorder)}, opts...)
		s, err := sim.New(ctx, backend, &fakeRendBackend{renderer: fr}, io.Discard, bg, opts...)
		Expect(err).NotTo(HaveOccurred())
		return s
	}

	BeforeEach(func() {
		ctx = context.Background()
		log = &callLog{}
		fs = &fakeSimulator{log: log}
		fr = &fakeRenderer{log: log}
		backend = &fakeSimBackend{sim: fs}
		recorder = &eventRecorder{}
		session = newSession()
		log.reset()
	})

	Describe("creation", func() {
		It("starts idle at step zero with the default profile installed", func() {
			Expect(session.State()).To(Equal(sim.Idle))
			Expect(session.Step()).To(Equal(0))
			Expect(session.ID()).NotTo(BeEmpty())
			Expect(session.Profile()).To(Equal(config.DefaultProfile))
			Expect(fs.physics).To(HaveLen(1))
			Expect(fs.physics[0]).To(HaveKey(config.ForceAtlas2))
			Expect(fs.locks.LockMidpoints).To(BeTrue())
		})

		It("takes dimensions and splits from the profile unless overridden", func() {
			sel, err := config.Select("gis")
			Expect(err).NotTo(HaveOccurred())

			newSession(sim.WithProfile(sel.Profile))
			Expect(backend.numSplits).To(Equal(7))
			Expect(backend.dims).To(Equal(dynamo.DefaultDimensions()))

			newSession(sim.WithProfile(sel.Profile), sim.WithNumSplits(2), sim.WithDimensions(dynamo.Dimensions{Width: 4, Height: 3}))
			Expect(backend.numSplits).To(Equal(2))
			Expect(backend.dims.Width).To(Equal(4.0))
		})

		It("hands the renderer to the simulator backend", func() {
			Expect(backend.renderer).To(BeIdenticalTo(sim.Renderer(fr)))
		})

		It("fails when the simulator cannot be created", func() {
			backend.err = errors.New("no device")
			_, err := sim.New(ctx, backend, &fakeRendBackend{renderer: fr}, io.Discard, bg)
			Expect(err).To(MatchError(ContainSubstring("no device")))
		})

		It("exposes the profile parameters in client form", func() {
			algos := session.ClientParams()
			Expect(algos).To(HaveLen(1))
			Expect(algos[0].Params).To(HaveLen(7))
		})
	})

	Describe("SetPoints", func() {
		It("commits vertices, sizes and colors in order and becomes ready", func() {
			Expect(session.SetPoints(ctx, square, nil, nil)).To(Succeed())

			Expect(log.all()).To(Equal([]string{"setPoints", "setSizes", "setColors"}))
			Expect(session.State()).To(Equal(sim.Ready))
			Expect(session.NumPoints()).To(Equal(4))
			Expect(fs.sizes).To(Equal(dynamo.SizeBuffer{4, 4, 4, 4}))
			Expect(fs.colors).To(HaveLen(4))
			Expect(fs.colors[0]).To(Equal(dynamo.DefaultPointColor))
		})

		It("clamps sizes without changing their count and warns", func() {
			Expect(session.SetPoints(ctx, square, []float64{-5, 300, 7.9, 12}, nil)).To(Succeed())

			Expect(fs.sizes).To(Equal(dynamo.SizeBuffer{0, 255, 7, 12}))
			Expect(recorder.warnings).To(HaveLen(1))
			Expect(recorder.warnings[0].Kind).To(Equal(dynamo.WarnSizeClamped))
		})

		It("rejects custom colors without committing anything", func() {
			err := session.SetPoints(ctx, square, nil, []uint32{1, 2, 3, 4})

			Expect(err).To(MatchError(dynamo.ErrUnsupportedFeature))
			Expect(log.all()).To(BeEmpty())
			Expect(session.State()).To(Equal(sim.Idle))
		})

		It("stays usable after a rejected request", func() {
			Expect(session.SetColors(ctx, []uint32{1})).To(MatchError(dynamo.ErrUnsupportedFeature))
			Expect(session.SetPoints(ctx, square, nil, nil)).To(Succeed())
			Expect(session.State()).To(Equal(sim.Ready))
		})

		It("rejects non-finite coordinates", func() {
			err := session.SetVertices(ctx, [][2]float64{{0, 0}, {1, math.Inf(1)}})
			Expect(err).To(MatchError(dynamo.ErrIngestion))
			Expect(session.State()).To(Equal(sim.Idle))
		})
	})

	Describe("Tick", func() {
		It("refuses to tick before points are committed", func() {
			Expect(session.Tick(ctx)).To(MatchError(dynamo.ErrNotReady))
			Expect(log.all()).To(BeEmpty())
		})

		Context("when ready", func() {
			BeforeEach(func() {
				Expect(session.SetPoints(ctx, square, nil, nil)).To(Succeed())
				log.reset()
			})

			It("simulates, renders and advances the step by one", func() {
				for i := 0; i < 3; i++ {
					Expect(session.Tick(ctx)).To(Succeed())
				}

				Expect(session.Step()).To(Equal(3))
				Expect(fs.ticks).To(Equal([]int{0, 1, 2}))
				Expect(fr.renders).To(Equal(3))
				Expect(log.all()[:2]).To(Equal([]string{"simulate", "render"}))
				Expect(recorder.kinds()[:6]).To(Equal([]string{
					"tickBegin", "simulateBegin", "simulateEnd", "renderBegin", "renderEnd", "tickEnd",
				}))
				Expect(session.State()).To(Equal(sim.Ready))
			})

			It("resets the step to zero on new vertices", func() {
				Expect(session.Tick(ctx)).To(Succeed())
				Expect(session.Tick(ctx)).To(Succeed())
				Expect(session.SetVertices(ctx, square)).To(Succeed())
				Expect(session.Step()).To(Equal(0))

				Expect(session.Tick(ctx)).To(Succeed())
				Expect(session.Step()).To(Equal(1))
			})

			It("moves the step to the re-settle value on a physics change", func() {
				Expect(session.Tick(ctx)).To(Succeed())
				Expect(session.SetPhysics(ctx, dynamo.PhysicsConfig{config.ForceAtlas2: {"gravity": 2}})).To(Succeed())
				Expect(session.Step()).To(Equal(sim.StepNumberOnChange))

				Expect(session.Tick(ctx)).To(Succeed())
				Expect(fs.ticks).To(Equal([]int{0, 30}))
			})

			It("keeps the step and stays ready when simulation fails", func() {
				fs.tickErr = errors.New("kernel fault")

				err := session.Tick(ctx)
				Expect(err).To(MatchError(ContainSubstring("kernel fault")))
				Expect(session.Step()).To(Equal(0))
				Expect(session.State()).To(Equal(sim.Ready))
				Expect(fr.renders).To(Equal(0))
				Expect(recorder.kinds()).To(Equal([]string{"tickBegin", "simulateBegin", "simulateEnd", "tickEnd"}))
				Expect(recorder.events[3].Err).To(HaveOccurred())

				fs.tickErr = nil
				Expect(session.Tick(ctx)).To(Succeed())
				Expect(session.Step()).To(Equal(1))
			})

			It("keeps the step when rendering fails", func() {
				fr.renderErr = errors.New("canvas lost")

				Expect(session.Tick(ctx)).To(MatchError(ContainSubstring("canvas lost")))
				Expect(session.Step()).To(Equal(0))
				Expect(session.State()).To(Equal(sim.Ready))
			})

			It("rejects a tick while another is in flight", func() {
				fs.tickStarted = make(chan struct{})
				fs.tickRelease = make(chan struct{})

				done := make(chan error, 1)
				go func() { done <- session.Tick(ctx) }()
				Eventually(fs.tickStarted).Should(Receive())

				Expect(session.State()).To(Equal(sim.Ticking))
				Expect(session.Tick(ctx)).To(MatchError(dynamo.ErrTickInFlight))
				Expect(session.SetVertices(ctx, square)).To(MatchError(dynamo.ErrTickInFlight))

				close(fs.tickRelease)
				Eventually(done).Should(Receive(BeNil()))
				Expect(session.Step()).To(Equal(1))
			})
		})
	})

	Describe("SetEdges", func() {
		BeforeEach(func() {
			Expect(session.SetPoints(ctx, square, nil, nil)).To(Succeed())
			log.reset()
		})

		It("treats an empty buffer as a successful no-op", func() {
			Expect(session.SetEdges(ctx, nil, nil)).To(Succeed())
			Expect(log.all()).To(BeEmpty())
			Expect(session.State()).To(Equal(sim.Ready))
		})

		It("installs forward and backward buckets built from the reversed buffer", func() {
			e := dynamo.EdgeBuffer{0, 1, 2, 3, 1, 2}
			Expect(session.SetEdges(ctx, e, nil)).To(Succeed())

			Expect(log.all()).To(Equal([]string{"setEdges", "setEdgeColors"}))
			Expect(fs.edges.Forward.SortedEdges).To(Equal(dynamo.EdgeBuffer{0, 1, 1, 2, 2, 3}))

			want, err := edges.Bucketize(edges.Reverse(e), 4)
			Expect(err).NotTo(HaveOccurred())
			Expect(fs.edges.Backward.SortedEdges).To(Equal(want.SortedEdges))
			Expect(fs.edgeColors).To(HaveLen(3))
			Expect(session.NumEdges()).To(Equal(3))
		})

		It("keeps the previous edges when bucketization fails", func() {
			Expect(session.SetEdges(ctx, dynamo.EdgeBuffer{0, 1}, nil)).To(Succeed())
			previous := fs.edges

			Expect(session.SetEdges(ctx, dynamo.EdgeBuffer{0, 9}, nil)).To(MatchError(dynamo.ErrBucketization))
			Expect(session.SetEdges(ctx, dynamo.EdgeBuffer{0, 1, 2}, nil)).To(MatchError(dynamo.ErrBucketization))
			Expect(fs.edges).To(BeIdenticalTo(previous))
			Expect(session.State()).To(Equal(sim.Ready))
		})

		It("reports a simulator rejection as a bucketization error", func() {
			fs.setEdgesErr = errors.New("buffer too large")
			err := session.SetEdgesOnly(ctx, dynamo.EdgeBuffer{0, 1})
			Expect(err).To(MatchError(dynamo.ErrBucketization))
			Expect(err).To(MatchError(ContainSubstring("buffer too large")))
		})

		It("passes custom edge colors through unchanged", func() {
			colors := []uint32{0xff0000ff, 0x00ff00ff}
			Expect(session.SetEdges(ctx, dynamo.EdgeBuffer{0, 1, 1, 2}, colors)).To(Succeed())
			Expect(fs.edgeColors).To(Equal(dynamo.ColorBuffer{0xff0000ff, 0x00ff00ff}))

			Expect(session.SetEdgeColors(ctx, []uint32{1, 2})).To(Succeed())
			Expect(fs.edgeColors).To(Equal(dynamo.ColorBuffer{1, 2}))

			Expect(session.SetEdgeColors(ctx, nil)).To(Succeed())
			Expect(fs.edgeColors).To(Equal(dynamo.ColorBuffer{dynamo.DefaultEdgeColor, dynamo.DefaultEdgeColor}))
		})

		It("rejects edge colors of the wrong length before committing edges", func() {
			Expect(session.SetEdges(ctx, dynamo.EdgeBuffer{0, 1}, nil)).To(Succeed())
			previous := fs.edges
			log.reset()

			err := session.SetEdges(ctx, dynamo.EdgeBuffer{0, 1, 1, 2}, []uint32{0xff0000ff})
			Expect(err).To(MatchError(dynamo.ErrIngestion))
			Expect(err).To(MatchError(dynamo.ErrDimensionMismatch))
			Expect(log.all()).To(BeEmpty())
			Expect(fs.edges).To(BeIdenticalTo(previous))
			Expect(session.NumEdges()).To(Equal(1))

			Expect(session.SetEdgeColors(ctx, []uint32{1, 2, 3})).To(MatchError(dynamo.ErrIngestion))
			Expect(session.State()).To(Equal(sim.Ready))
		})

		It("forgets its edges when the point count changes", func() {
			Expect(session.SetEdges(ctx, dynamo.EdgeBuffer{0, 1, 1, 2}, nil)).To(Succeed())
			Expect(session.NumEdges()).To(Equal(2))

			Expect(session.SetVertices(ctx, [][2]float64{{0, 0}, {1, 1}, {2, 2}, {3, 3}})).To(Succeed())
			Expect(session.NumEdges()).To(Equal(2))

			Expect(session.SetPoints(ctx, [][2]float64{{0, 0}, {1, 1}}, nil, nil)).To(Succeed())
			Expect(session.NumEdges()).To(BeZero())
			Expect(session.SetEdgeColors(ctx, nil)).To(Succeed())
			Expect(fs.edgeColors).To(BeEmpty())
		})

		It("computes midpoints from the committed vertices", func() {
			sel, err := config.Select("gis")
			Expect(err).NotTo(HaveOccurred())
			s := newSession(sim.WithProfile(sel.Profile), sim.WithNumSplits(2))

			Expect(s.SetPoints(ctx, [][2]float64{{0, 0}, {3, 3}}, nil, nil)).To(Succeed())
			Expect(s.SetEdges(ctx, dynamo.EdgeBuffer{0, 1}, nil)).To(Succeed())
			Expect(fs.edges.Midpoints).To(Equal([]float32{1, 1, 2, 2}))
		})
	})

	Describe("UpdateSettings", func() {
		BeforeEach(func() {
			Expect(session.SetPoints(ctx, square, nil, nil)).To(Succeed())
			Expect(session.Tick(ctx)).To(Succeed())
			log.reset()
		})

		It("applies physics, locks, visibility and time subset in that order", func() {
			err := session.UpdateSettings(ctx, &config.Settings{
				Simulator:  map[string]map[string]any{config.ForceAtlas2: {"gravity": 100.0}},
				Locks:      &dynamo.Locks{LockPoints: true},
				Visible:    &dynamo.Visibility{Points: true},
				TimeSubset: &dynamo.TimeSubset{Min: 10, Max: 20},
			})
			Expect(err).NotTo(HaveOccurred())

			Expect(log.all()).To(Equal([]string{"setPhysics", "setLocked", "setVisible", "setTimeSubset"}))
			Expect(session.Step()).To(Equal(sim.StepNumberOnChange))
			Expect(float64(fs.physics[1][config.ForceAtlas2]["gravity"])).To(BeNumerically("~", 100, 1e-9))
			Expect(fs.locks.LockPoints).To(BeTrue())
			Expect(fr.visible.Edges).To(BeFalse())
			Expect(fs.subset.Max).To(Equal(20.0))
		})

		It("warns about an unknown algorithm without touching any parameter", func() {
			before := session.ClientParams()

			err := session.UpdateSettings(ctx, &config.Settings{
				Simulator: map[string]map[string]any{"EdgeBundling": {"tau": 50}},
			})
			Expect(err).NotTo(HaveOccurred())

			Expect(recorder.warnings).To(HaveLen(1))
			Expect(recorder.warnings[0].Kind).To(Equal(dynamo.WarnUnknownAlgorithm))
			Expect(session.ClientParams()).To(Equal(before))
			Expect(log.all()).To(BeEmpty())
			Expect(session.Step()).To(Equal(1))
		})

		It("skips unknown parameters but applies the rest", func() {
			err := session.UpdateSettings(ctx, &config.Settings{
				Simulator: map[string]map[string]any{config.ForceAtlas2: {"linLog": true, "bogus": 3}},
			})
			Expect(err).NotTo(HaveOccurred())

			Expect(recorder.warnings).To(HaveLen(1))
			Expect(recorder.warnings[0].Param).To(Equal("bogus"))
			Expect(fs.physics[1][config.ForceAtlas2]).To(Equal(map[string]dynamo.Value{"linLog": 1}))
		})

		It("ignores an empty update", func() {
			Expect(session.UpdateSettings(ctx, nil)).To(Succeed())
			Expect(session.UpdateSettings(ctx, &config.Settings{})).To(Succeed())
			Expect(log.all()).To(BeEmpty())
		})
	})

	Describe("renderer controls", func() {
		It("forwards visibility and color maps", func() {
			Expect(session.SetVisible(ctx, dynamo.Visibility{Edges: true})).To(Succeed())
			Expect(session.SetColorMap(ctx, "file:///tmp/map.png", []int{0, 1})).To(Succeed())

			Expect(fr.visible.Edges).To(BeTrue())
			Expect(fr.colorMap).To(Equal("file:///tmp/map.png"))
			Expect(fr.clusters).To(Equal([]int{0, 1}))
		})
	})

	Describe("with the CPU simulator", func() {
		It("lays out a small graph", func() {
			s, err := sim.New(ctx, compute.NewBackend(), &fakeRendBackend{renderer: fr}, io.Discard, bg)
			Expect(err).NotTo(HaveOccurred())

			Expect(s.SetPoints(ctx, [][2]float64{{0, 0}, {1, 0}, {0, 1}, {2, 2}}, nil, nil)).To(Succeed())
			Expect(s.SetEdges(ctx, dynamo.EdgeBuffer{0, 1, 1, 2, 2, 3, 3, 0}, nil)).To(Succeed())
			for i := 0; i < 10; i++ {
				Expect(s.Tick(ctx)).To(Succeed())
			}
			Expect(s.Step()).To(Equal(10))
			Expect(fr.renders).To(Equal(10))
			Expect(s.Close()).To(Succeed())
		})

		It("publishes custom edge colors", func() {
			s, err := sim.New(ctx, compute.NewBackend(), &fakeRendBackend{renderer: fr}, io.Discard, bg)
			Expect(err).NotTo(HaveOccurred())

			Expect(s.SetPoints(ctx, [][2]float64{{0, 0}, {1, 0}, {0, 1}}, nil, nil)).To(Succeed())
			Expect(s.SetEdges(ctx, dynamo.EdgeBuffer{0, 1, 1, 2}, []uint32{0xff0000ff, 0x00ff00ff})).To(Succeed())
			Expect(fr.view.EdgeColors).To(Equal(dynamo.ColorBuffer{0xff0000ff, 0x00ff00ff}))
		})

		It("accepts default edge colors after the edges were dropped", func() {
			s, err := sim.New(ctx, compute.NewBackend(), &fakeRendBackend{renderer: fr}, io.Discard, bg)
			Expect(err).NotTo(HaveOccurred())

			Expect(s.SetPoints(ctx, [][2]float64{{0, 0}, {1, 0}, {0, 1}}, nil, nil)).To(Succeed())
			Expect(s.SetEdges(ctx, dynamo.EdgeBuffer{0, 1, 1, 2}, nil)).To(Succeed())
			Expect(s.SetPoints(ctx, [][2]float64{{0, 0}, {1, 0}}, nil, nil)).To(Succeed())

			Expect(s.NumEdges()).To(BeZero())
			Expect(s.SetEdgeColors(ctx, nil)).To(Succeed())
			Expect(s.Tick(ctx)).To(Succeed())
		})
	})
})
