package vds

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// monitorDigital and monitorAnalog are the readback parameters refreshed by
// the poller. Setpoints are left alone; they change only through writes.
var (
	monitorModuleDigital = []Param{
		ParamModStatus,
		ParamModEvtStatus,
	}
	monitorModuleAnalog = []Param{
		ParamSupplyP5,
		ParamSupplyP12,
		ParamSupplyN12,
		ParamTemperature,
	}
	monitorChannelDigital = []Param{
		ParamChanStatus,
		ParamChanEvtStatus,
	}
	monitorChannelAnalog = []Param{
		ParamChanVMom,
		ParamChanIMom,
	}
)

// Poller periodically refreshes the monitor parameters of one module so the
// cached state tracks the hardware between client requests.
type Poller struct {
	module   *Module
	interval time.Duration
	logger   *zap.Logger
	stopChan chan struct{}
	wg       sync.WaitGroup
	running  bool
	mu       sync.Mutex
}

func NewPoller(module *Module, interval time.Duration, logger *zap.Logger) *Poller {
	return &Poller{
		module:   module,
		interval: interval,
		logger:   logger,
	}
}

// Start spawns the poll loop. Safe to call again after Stop; a fresh stop
// channel is created per run.
func (p *Poller) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return nil
	}

	p.stopChan = make(chan struct{})
	p.running = true
	p.wg.Add(1)

	go p.pollLoop(p.stopChan)

	p.logger.Info("Poller started",
		zap.String("module", p.module.Name),
		zap.Duration("interval", p.interval))

	return nil
}

// Stop signals the loop and waits for it to drain. Concurrent and repeated
// Stops are no-ops; the channel is closed under the lock exactly once.
func (p *Poller) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	close(p.stopChan)
	p.mu.Unlock()

	p.wg.Wait()

	p.logger.Info("Poller stopped", zap.String("module", p.module.Name))
}

func (p *Poller) pollLoop(stop <-chan struct{}) {
	defer p.wg.Done()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			p.pollModule()
		}
	}
}

func (p *Poller) pollModule() {
	ctx, cancel := context.WithTimeout(context.Background(), p.interval/2)
	defer cancel()

	for _, param := range monitorModuleDigital {
		if _, _, err := p.module.ReadDigital(ctx, param, 0, 0xffffffff); err != nil {
			p.logPollError(param, 0, err)
		}
	}
	for _, param := range monitorModuleAnalog {
		if _, _, err := p.module.ReadAnalog(ctx, param, 0); err != nil {
			p.logPollError(param, 0, err)
		}
	}

	for ch := 0; ch < NumChannels; ch++ {
		for _, param := range monitorChannelDigital {
			if _, _, err := p.module.ReadDigital(ctx, param, ch, 0xffffffff); err != nil {
				p.logPollError(param, ch, err)
			}
		}
		for _, param := range monitorChannelAnalog {
			if _, _, err := p.module.ReadAnalog(ctx, param, ch); err != nil {
				p.logPollError(param, ch, err)
			}
		}
	}
}

func (p *Poller) logPollError(param Param, channel int, err error) {
	p.logger.Error("Poll failed",
		zap.String("module", p.module.Name),
		zap.String("parameter", param.String()),
		zap.Int("channel", channel),
		zap.Error(err))
}

func (p *Poller) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}
