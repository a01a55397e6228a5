package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/chzchzchz/sdrscan/nicerx"
	"github.com/chzchzchz/sdrscan/radio"
	"github.com/chzchzchz/sdrscan/scanner"
	"github.com/chzchzchz/sdrscan/store"
	"github.com/chzchzchz/sdrscan/telemetry"
	"github.com/chzchzchz/sdrscan/ui"
)

var rootCmd = &cobra.Command{
	Use:   "sdrscan",
	Short: "An SDR frequency scanner.",
}

var (
	configPath   string
	moduleName   string
	bandStorePath string
	serial       string
	dashboard    bool
	listenAddr   string

	discoverCenterMHz  float64
	discoverMinWidthKHz float64
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "sdrscan.json", "scanner config file")
	rootCmd.PersistentFlags().StringVarP(&moduleName, "module", "m", "scanner", "config module key")
	rootCmd.PersistentFlags().StringVar(&bandStorePath, "bands", "bands.gob", "band store file")
	rootCmd.PersistentFlags().StringVar(&serial, "serial", "0", "rtl-sdr device serial or index")

	scanCmd := &cobra.Command{
		Use:   "scan",
		Short: "Run the scan loop against a live SDR.",
		Run: func(cmd *cobra.Command, args []string) { runScan() },
	}
	scanCmd.Flags().BoolVar(&dashboard, "dashboard", true, "show the terminal dashboard")
	scanCmd.Flags().StringVar(&listenAddr, "listen", "", "telemetry websocket listen address, e.g. :8090 (overrides config)")
	rootCmd.AddCommand(scanCmd)

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List SDR hardware visible to rtl_tcp.",
		Run: func(cmd *cobra.Command, args []string) { listHW() },
	}
	rootCmd.AddCommand(listCmd)

	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Print the effective scanner configuration.",
		Run: func(cmd *cobra.Command, args []string) { printConfig() },
	}
	rootCmd.AddCommand(configCmd)

	detectionsCmd := &cobra.Command{
		Use:   "detections",
		Short: "List the most recent captured detections.",
		Run: func(cmd *cobra.Command, args []string) { listDetections() },
	}
	rootCmd.AddCommand(detectionsCmd)

	discoverCmd := &cobra.Command{
		Use:   "discover",
		Short: "Survey a band with a legacy whole-band sweep and seed the band store.",
		Run: func(cmd *cobra.Command, args []string) { discoverBands() },
	}
	discoverCmd.Flags().Float64Var(&discoverCenterMHz, "center", 162.0, "sweep center frequency, MHz")
	discoverCmd.Flags().Float64Var(&discoverMinWidthKHz, "min-width", 10.0, "minimum reported band width, kHz")
	rootCmd.AddCommand(discoverCmd)
}

// discoverBands runs the legacy whole-band sweep (predates the scan-list/
// CFAR path) to bootstrap a band store before the first scan-list-driven
// scan: tune once, take a batch of FFT frames, and record every band wider
// than min-width that isn't a known spur.
func discoverBands() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	sdr, err := radio.NewSDRWithSerial(ctx, serial)
	if err != nil {
		panic(err)
	}
	defer sdr.Close()

	found := radio.Scan(sdr, radio.ScanConfig{CenterMHz: discoverCenterMHz, MinWidthMHz: discoverMinWidthKHz / 1000})

	bands := store.NewBandStore()
	if err := bands.Load(bandStorePath); err != nil {
		log.Printf("discover: load band store: %v", err)
	}
	bands.Add(found)
	if err := bands.Save(bandStorePath); err != nil {
		panic(err)
	}
	for _, fb := range found {
		fmt.Printf("%.4f MHz  %.1f kHz\n", fb.Center, fb.Width*1000)
	}
	fmt.Printf("discovered %d bands, saved to %s\n", len(found), bandStorePath)
}

func listHW() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	sdrs, err := radio.SDRList(ctx)
	if err != nil {
		panic(err)
	}
	for _, s := range sdrs {
		fmt.Printf("%s  %d-%d Hz  %d-%d sps\n", s.Id, s.MinHz, s.MaxHz, s.MinSampleRate, s.MaxSampleRate)
	}
}

func printConfig() {
	cfg, err := scanner.LoadConfig(configPath, moduleName)
	if err != nil {
		panic(err)
	}
	fmt.Printf("%+v\n", cfg)
}

func listDetections() {
	ds := store.NewDetectionStore("detections.db")
	defer ds.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	dets, err := ds.Recent(ctx, 20)
	if err != nil {
		panic(err)
	}
	for _, d := range dets {
		fmt.Printf("%.4f MHz  %.1f dB  %s  %s\n", d.FrequencyHz/1e6, d.PeakDB, d.Timestamp.Format(time.RFC3339), d.Bookmark)
	}
}

// sdrTuner adapts radio.SDR to scanner.Tuner. The scanner only ever asks it
// to retune and report whether a band is currently live; gain control is
// opportunistic since SDR doesn't expose it directly.
type sdrTuner struct {
	sdr radio.SDR

	mu         sync.Mutex
	sampleRate float64
	started    bool
}

func newSDRTuner(sdr radio.SDR, sampleRate float64) *sdrTuner {
	return &sdrTuner{sdr: sdr, sampleRate: sampleRate}
}

func (t *sdrTuner) SetCenterFrequency(hz float64) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	band := radio.HzBand{Center: uint64(hz), Width: uint64(t.sampleRate)}
	if err := t.sdr.SetBand(band); err != nil {
		return err
	}
	t.started = true
	return nil
}

func (t *sdrTuner) SetGainDB(db float64) error {
	if g, ok := t.sdr.(interface{ SetGain(gain uint32) error }); ok {
		return g.SetGain(uint32(db * 10))
	}
	return nil
}

func (t *sdrTuner) IsStarted() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.started
}

func (t *sdrTuner) SampleRate() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.sampleRate
}

// dashboardSource adapts a running Scanner plus whichever ScanFFTHost is
// backing its detection path into ui.Source, so the terminal dashboard can
// poll live state and spectrum data without the scanner package depending
// on ui.
type dashboardSource struct {
	sc   *scanner.Scanner
	host scanner.ScanFFTHost
	bins int

	scratch []float64
}

func (d *dashboardSource) Snapshot() ui.Snapshot {
	st := d.sc.State()
	snap := ui.Snapshot{
		State:        st.State,
		FrequencyHz:  st.CurrentFreq,
		Bookmark:     st.BookmarkName,
		PeakDB:       st.PeakDB,
		NoiseFloorDB: st.NoiseFloorDB,
	}
	if d.host != nil {
		if d.scratch == nil {
			d.scratch = make([]float64, d.bins)
		}
		if _, _, ok := d.host.AcquireSnapshot(d.scratch); ok {
			snap.Spectrum = normalizeDB(d.scratch)
		}
	}
	return snap
}

// normalizeDB maps dBFS readings onto [0,1] against a fixed floor/ceiling
// for the dashboard's bar-chart rendering.
func normalizeDB(db []float64) []float64 {
	const floor, ceiling = -100.0, 0.0
	out := make([]float64, len(db))
	for i, v := range db {
		x := (v - floor) / (ceiling - floor)
		if x < 0 {
			x = 0
		} else if x > 1 {
			x = 1
		}
		out[i] = x
	}
	return out
}

func runScan() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt)
	go func() {
		<-sigCh
		cancel()
	}()

	cfg, err := scanner.LoadConfig(configPath, moduleName)
	if err != nil {
		panic(err)
	}

	bands := store.NewBandStore()
	if err := bands.Load(bandStorePath); err != nil {
		log.Printf("scan: load band store: %v", err)
	}
	bands.SetBlacklist(cfg.BlacklistedFreqs)
	fm := store.NewFrequencyManagerAdapter(bands)

	iterator, err := scanner.NewFrequencyManagerIterator(fm)
	if err != nil {
		panic(err)
	}

	sdr, err := radio.NewSDRWithSerial(ctx, serial)
	if err != nil {
		panic(err)
	}
	defer sdr.Close()

	band := radio.FreqBand{Center: (cfg.StartFreq + cfg.StopFreq) / 2e6, Width: (cfg.StopFreq - cfg.StartFreq) / 1e6}
	tuner := newSDRTuner(sdr, cfg.Interval)
	vfo := scanner.NewNullVFO()

	var psd *scanner.PSDEngine
	var fallback *scanner.FallbackDetector
	var fftHost scanner.ScanFFTHost
	var fftBins int
	if cfg.UseDedicatedFFT {
		psd, err = scanner.NewPSDEngine(cfg.ScannerFFTSize, cfg.Interval, cfg.ScannerOverlap, cfg.ScannerWindowType, cfg.ScannerAvgTimeMs)
		if err != nil {
			panic(err)
		}
		fftHost, fftBins = psd, psd.FFTSize()
		go func() {
			for samp := range sdr.Reader().Batch64(cfg.ScannerFFTSize, 0) {
				select {
				case <-ctx.Done():
					return
				default:
				}
				psd.Feed(samp)
			}
		}()
	} else {
		host := scanner.NewWaterfallSpectrumHost(band, 4096)
		fallback = scanner.NewFallbackDetector(host, 4096)
		fftHost, fftBins = host, 4096
		go func() {
			ticker := time.NewTicker(500 * time.Millisecond)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					if err := host.Refresh(sdr.Reader().Batch64(4096, 50)); err != nil {
						log.Printf("scan: waterfall refresh: %v", err)
					}
				}
			}
		}()
	}

	sc, err := scanner.NewScanner("scanner", band, cfg, tuner, vfo, iterator, psd, fallback)
	if err != nil {
		panic(err)
	}
	if err := sc.Start(); err != nil {
		panic(err)
	}

	var hub *telemetry.Hub
	var natsPub *telemetry.NATSPublisher
	addr := listenAddr
	if addr == "" {
		addr = cfg.Telemetry.Listen
	}
	if addr != "" {
		hub = telemetry.NewHub()
		done := make(chan struct{})
		go hub.Run(done)
		go func() {
			<-ctx.Done()
			close(done)
		}()
		mux := http.NewServeMux()
		mux.HandleFunc("/ws", hub.ServeWS)
		srv := &http.Server{Addr: addr, Handler: mux}
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Printf("scan: telemetry listen: %v", err)
			}
		}()
		go func() {
			<-ctx.Done()
			srv.Close()
		}()
	}
	if cfg.Telemetry.NATSURL != "" {
		natsPub = telemetry.NewNATSPublisher("sdrscan.status")
		if err := natsPub.Connect(cfg.Telemetry.NATSURL); err != nil {
			log.Printf("scan: nats connect: %v", err)
		} else {
			defer natsPub.Close()
		}
	}

	var detStore *store.DetectionStore
	var signals *store.SignalStore
	if cfg.CaptureOnDetect {
		detStore = store.NewDetectionStore("detections.db")
		defer detStore.Close()
		signals, err = store.NewSignalStore("captures")
		if err != nil {
			panic(err)
		}
	}

	if dashboard {
		src := &dashboardSource{sc: sc, host: fftHost, bins: fftBins}
		prog := tea.NewProgram(ui.NewModel(src))
		go runLoop(ctx, sc, sdr, hub, natsPub, detStore, signals)
		if _, err := prog.Run(); err != nil {
			log.Printf("scan: dashboard: %v", err)
		}
		return
	}

	runLoop(ctx, sc, sdr, hub, natsPub, detStore, signals)
}

// captureWindowBatches bounds how much IQ a single detection capture
// writes to disk (§4.11): a fixed number of batches at the tuner's current
// sample rate, not an energy-triggered run like the teacher's nicerx.Capture
// used (that trigger is now the scanner's own CFAR/fallback detection).
const captureWindowBatches = 50
const captureBatchSamples = 8192

func captureDetection(ctx context.Context, sdr radio.SDR, signals *store.SignalStore, detStore *store.DetectionStore, freqHz float64, peakDB, noiseDB float64, bookmark string) {
	fb := radio.FreqBand{Center: freqHz / 1e6, Width: float64(captureBatchSamples) / 1e6}
	f, err := signals.OpenFile(fb)
	if err != nil {
		log.Printf("scan: capture: open: %v", err)
		return
	}
	iqw := radio.NewIQWriter(f)
	for samps := range sdr.Reader().BatchStream64(ctx, captureBatchSamples, captureWindowBatches) {
		if err := iqw.Write64(samps); err != nil {
			log.Printf("scan: capture: write: %v", err)
			break
		}
	}
	iqPath := f.Name()
	f.Close()

	specPath := iqPath + ".jpg"
	if err := nicerx.WriteSpectrogramFile(iqPath, specPath, 256); err != nil {
		log.Printf("scan: capture: spectrogram: %v", err)
		specPath = ""
	}

	d := store.Detection{
		FrequencyHz:     freqHz,
		PeakDB:          peakDB,
		NoiseFloorDB:    noiseDB,
		Bookmark:        bookmark,
		Timestamp:       time.Now(),
		IQPath:          iqPath,
		SpectrogramPath: specPath,
	}
	if _, err := detStore.Insert(ctx, d); err != nil {
		log.Printf("scan: capture: insert: %v", err)
	}
}

func runLoop(ctx context.Context, sc *scanner.Scanner, sdr radio.SDR, hub *telemetry.Hub, natsPub *telemetry.NATSPublisher, detStore *store.DetectionStore, signals *store.SignalStore) {
	ticker := time.NewTicker(sc.TickInterval())
	defer ticker.Stop()
	prev := scanner.Idle
	for {
		select {
		case <-ctx.Done():
			sc.Stop()
			return
		case <-ticker.C:
			if err := sc.Step(ctx); err != nil {
				log.Printf("scan: step: %v", err)
				return
			}
			st := sc.State()
			u := telemetry.Update{
				State:        st.State.String(),
				FrequencyHz:  st.CurrentFreq,
				Bookmark:     st.BookmarkName,
				PeakDB:       st.PeakDB,
				NoiseFloorDB: st.NoiseFloorDB,
				Timestamp:    time.Now(),
			}
			if hub != nil {
				hub.Publish(u)
			}
			if natsPub != nil {
				natsPub.Publish(u)
			}
			if detStore != nil && prev != scanner.Dwell && st.State == scanner.Dwell {
				go captureDetection(ctx, sdr, signals, detStore, st.CurrentFreq, st.PeakDB, st.NoiseFloorDB, st.BookmarkName)
			}
			prev = st.State
		}
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
