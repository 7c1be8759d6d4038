package chrono

import (
	"fmt"
	"sync"
)

// ManualCron implements CronAPI without a scheduler, jobs only run when Fire
// is called.
type ManualCron struct {
	mu     sync.Mutex
	nextId int
	jobs   map[int]manualJob
}

type manualJob struct {
	spec     string
	callback func()
}

func NewManualCron() *ManualCron {
	return &ManualCron{jobs: map[int]manualJob{}}
}

func (m *ManualCron) Cron(spec string, callback func()) (func(), error) {
	if spec == "" {
		return nil, fmt.Errorf("empty cron spec")
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextId
	m.nextId++
	m.jobs[id] = manualJob{spec: spec, callback: callback}

	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.jobs, id)
	}, nil
}

// Specs returns the specs of every scheduled job.
func (m *ManualCron) Specs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	specs := []string{}
	for _, job := range m.jobs {
		specs = append(specs, job.spec)
	}
	return specs
}

// Fire runs every scheduled job synchronously.
func (m *ManualCron) Fire() {
	m.mu.Lock()
	callbacks := []func(){}
	for _, job := range m.jobs {
		callbacks = append(callbacks, job.callback)
	}
	m.mu.Unlock()

	for _, cb := range callbacks {
		cb()
	}
}
