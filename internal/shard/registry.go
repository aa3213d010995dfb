package shard

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/jhoicas/kho-shard/internal/domain/repository"
	"github.com/jhoicas/kho-shard/pkg/config"
)

// Connection una base física registrada: el master o un shard regional.
type Connection struct {
	Key    string
	Master bool
	Store  repository.Store
}

// StoreOpener abre el Store de una conexión a partir de su configuración.
type StoreOpener func(ctx context.Context, key string, db config.DBConfig) (repository.Store, error)

// Registry conexiones creadas al arrancar. Se pasa explícitamente a quien la necesite.
type Registry struct {
	master *Connection
	shards map[string]*Connection
	keys   []string
}

// NewRegistry construye el registro a partir de stores ya abiertos. master puede ser nil.
func NewRegistry(master repository.Store, shards map[string]repository.Store) *Registry {
	r := &Registry{shards: make(map[string]*Connection, len(shards))}
	if master != nil {
		r.master = &Connection{Key: config.MasterKey, Master: true, Store: master}
	}
	for key, store := range shards {
		r.shards[key] = &Connection{Key: key, Store: store}
		r.keys = append(r.keys, key)
	}
	sort.Strings(r.keys)
	return r
}

// Open abre master (si hay datos de conexión) y cada shard declarado. Si alguno falla
// cierra los ya abiertos.
func Open(ctx context.Context, cfg *config.Config, open StoreOpener) (*Registry, error) {
	var opened []repository.Store
	closeOpened := func() {
		for _, s := range opened {
			s.Close()
		}
	}

	var master repository.Store
	if !cfg.Master.Empty() {
		s, err := open(ctx, config.MasterKey, cfg.Master)
		if err != nil {
			return nil, fmt.Errorf("abrir master: %w", err)
		}
		master = s
		opened = append(opened, s)
	}

	shards := make(map[string]repository.Store, len(cfg.Shards))
	for _, sc := range cfg.Shards {
		s, err := open(ctx, sc.Key, sc.DB)
		if err != nil {
			closeOpened()
			return nil, fmt.Errorf("abrir shard %s: %w", sc.Key, err)
		}
		shards[sc.Key] = s
		opened = append(opened, s)
	}
	return NewRegistry(master, shards), nil
}

// Master devuelve la conexión master si está configurada.
func (r *Registry) Master() (*Connection, bool) {
	return r.master, r.master != nil
}

// Shard devuelve el shard con esa clave.
func (r *Registry) Shard(key string) (*Connection, bool) {
	c, ok := r.shards[key]
	return c, ok
}

// Keys claves de shard registradas, ordenadas.
func (r *Registry) Keys() []string {
	return append([]string(nil), r.keys...)
}

// All todas las conexiones: master primero y luego los shards en orden de clave.
func (r *Registry) All() []*Connection {
	out := make([]*Connection, 0, len(r.keys)+1)
	if r.master != nil {
		out = append(out, r.master)
	}
	for _, k := range r.keys {
		out = append(out, r.shards[k])
	}
	return out
}

// PingAll diagnóstico no fatal: hace ping a todas las conexiones en paralelo y devuelve
// el resultado por clave (nil si respondió).
func (r *Registry) PingAll(ctx context.Context) map[string]error {
	conns := r.All()
	out := make(map[string]error, len(conns))
	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for _, c := range conns {
		wg.Add(1)
		go func(c *Connection) {
			defer wg.Done()
			err := c.Store.Ping(ctx)
			mu.Lock()
			out[c.Key] = err
			mu.Unlock()
		}(c)
	}
	wg.Wait()
	return out
}

// Close cierra todas las conexiones.
func (r *Registry) Close() {
	for _, c := range r.All() {
		c.Store.Close()
	}
}
