// Package orchestrator runs the api and ingest commands as child processes
// of the bridge binary.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
)

// Service is one child process of the orchestrator
type Service struct {
	Name string
	Args []string
	// Task services are expected to finish; a clean exit leaves the others running.
	Task bool

	cmd  *exec.Cmd
	done chan error
}

// ServiceManager manages the lifecycle of the ingest and API services
type ServiceManager struct {
	executable   string
	services     []*Service
	startupDelay time.Duration
	stopTimeout  time.Duration
}

// NewServiceManager creates a service manager that re-executes executable.
// An empty executable means the running binary.
func NewServiceManager(executable string) (*ServiceManager, error) {
	if executable == "" {
		self, err := os.Executable()
		if err != nil {
			return nil, fmt.Errorf("failed to locate executable: %w", err)
		}
		executable = self
	}

	return &ServiceManager{
		executable:   executable,
		startupDelay: 2 * time.Second,
		stopTimeout:  5 * time.Second,
	}, nil
}

// Start launches a long-running service. Services start in the order they are added.
func (sm *ServiceManager) Start(ctx context.Context, name string, args ...string) error {
	return sm.start(ctx, &Service{Name: name, Args: args})
}

// StartTask launches a service that is expected to run to completion
func (sm *ServiceManager) StartTask(ctx context.Context, name string, args ...string) error {
	return sm.start(ctx, &Service{Name: name, Args: args, Task: true})
}

func (sm *ServiceManager) start(ctx context.Context, svc *Service) error {
	name, args := svc.Name, svc.Args
	log.Info().Str("service", name).Strs("args", args).Msg("Starting service...")

	svc.done = make(chan error, 1)
	svc.cmd = exec.Command(sm.executable, args...)
	svc.cmd.Stdout = os.Stdout
	svc.cmd.Stderr = os.Stderr
	svc.cmd.Env = os.Environ()

	if err := svc.cmd.Start(); err != nil {
		return fmt.Errorf("failed to start %s service: %w", name, err)
	}
	go func() {
		svc.done <- svc.cmd.Wait()
	}()
	sm.services = append(sm.services, svc)

	// let the service come up before starting the next one
	select {
	case <-ctx.Done():
	case <-time.After(sm.startupDelay):
	}
	return nil
}

type exit struct {
	svc *Service
	err error
}

// Wait blocks until any service exits or ctx is cancelled, then stops
// the remaining services. It returns the error of the first exited service.
func (sm *ServiceManager) Wait(ctx context.Context) error {
	if len(sm.services) == 0 {
		return errors.New("no services started")
	}
	log.Info().Int("services", len(sm.services)).Msg("Services started, waiting for completion...")

	exits := make(chan exit, len(sm.services))
	for _, svc := range sm.services {
		go func(svc *Service) {
			exits <- exit{svc: svc, err: <-svc.done}
		}(svc)
	}

	stopped := make(map[*Service]bool, len(sm.services))
	var firstErr error

wait:
	for len(stopped) < len(sm.services) {
		select {
		case e := <-exits:
			stopped[e.svc] = true
			if e.svc.Task && e.err == nil {
				log.Info().Str("service", e.svc.Name).Msg("Service completed successfully")
				continue
			}
			firstErr = e.err
			if e.err != nil {
				log.Error().Err(e.err).Str("service", e.svc.Name).Msg("Service exited with error")
			} else {
				log.Info().Str("service", e.svc.Name).Msg("Service exited")
			}
			break wait
		case <-ctx.Done():
			log.Info().Msg("Shutting down services...")
			break wait
		}
	}

	sm.shutdown(exits, stopped)
	return firstErr
}

// shutdown sends SIGTERM to every service not in stopped and kills those
// still running after stopTimeout.
func (sm *ServiceManager) shutdown(exits <-chan exit, stopped map[*Service]bool) {
	for _, svc := range sm.services {
		if stopped[svc] {
			continue
		}
		if err := svc.cmd.Process.Signal(syscall.SIGTERM); err != nil && !errors.Is(err, os.ErrProcessDone) {
			log.Warn().Err(err).Str("service", svc.Name).Msg("Failed to signal service")
		}
	}

	deadline := time.After(sm.stopTimeout)
	for len(stopped) < len(sm.services) {
		select {
		case e := <-exits:
			stopped[e.svc] = true
			log.Info().Str("service", e.svc.Name).Msg("Service stopped")
		case <-deadline:
			sm.kill(stopped)
			return
		}
	}
}

func (sm *ServiceManager) kill(stopped map[*Service]bool) {
	for _, svc := range sm.services {
		if stopped[svc] {
			continue
		}
		log.Warn().Str("service", svc.Name).Msg("Service did not stop in time, killing")
		if err := svc.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
			log.Warn().Err(err).Str("service", svc.Name).Msg("Failed to kill service")
		}
	}
}
