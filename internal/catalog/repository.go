package catalog

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Repository defines the interface for service storage
type Repository interface {
	Get(ctx context.Context, id int64) (*Service, error)
	List(ctx context.Context, activeOnly bool) ([]Service, error)
	Create(ctx context.Context, svc *Service) error
	Update(ctx context.Context, svc *Service) error
}

// InMemoryRepository keeps services in process.
type InMemoryRepository struct {
	mu       sync.RWMutex
	services map[int64]*Service
	nextID   int64
}

// NewInMemoryRepository creates a repository seeded with services.
func NewInMemoryRepository(seed ...Service) *InMemoryRepository {
	r := &InMemoryRepository{services: make(map[int64]*Service)}
	for i := range seed {
		svc := seed[i]
		if svc.ID == 0 {
			r.nextID++
			svc.ID = r.nextID
		} else if svc.ID > r.nextID {
			r.nextID = svc.ID
		}
		r.services[svc.ID] = &svc
	}
	return r
}

func (r *InMemoryRepository) Get(ctx context.Context, id int64) (*Service, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	svc, ok := r.services[id]
	if !ok {
		return nil, ErrServiceNotFound
	}
	out := *svc
	return &out, nil
}

func (r *InMemoryRepository) List(ctx context.Context, activeOnly bool) ([]Service, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Service, 0, len(r.services))
	for _, svc := range r.services {
		if activeOnly && !svc.Active {
			continue
		}
		out = append(out, *svc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *InMemoryRepository) Create(ctx context.Context, svc *Service) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	now := time.Now().UTC()
	svc.ID = r.nextID
	svc.CreatedAt = now
	svc.UpdatedAt = now
	stored := *svc
	r.services[svc.ID] = &stored
	return nil
}

func (r *InMemoryRepository) Update(ctx context.Context, svc *Service) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.services[svc.ID]; !ok {
		return ErrServiceNotFound
	}
	svc.UpdatedAt = time.Now().UTC()
	stored := *svc
	r.services[svc.ID] = &stored
	return nil
}
