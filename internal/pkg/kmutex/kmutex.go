// Package kmutex ofrece un mutex por clave: la disciplina de un solo escritor
// por materialId / requestId que exige el modelo de concurrencia. Claves
// distintas avanzan en paralelo; no hay lock global.
package kmutex

import "sync"

// KMutex mutex por clave con conteo de referencias (las entradas se liberan
// cuando nadie las sostiene).
type KMutex struct {
	mu    sync.Mutex
	locks map[string]*entry
}

type entry struct {
	mu   sync.Mutex
	refs int
}

// New crea un KMutex vacío.
func New() *KMutex {
	return &KMutex{locks: make(map[string]*entry)}
}

// Lock adquiere el mutex de la clave.
func (k *KMutex) Lock(key string) {
	k.mu.Lock()
	e, ok := k.locks[key]
	if !ok {
		e = &entry{}
		k.locks[key] = e
	}
	e.refs++
	k.mu.Unlock()

	e.mu.Lock()
}

// Unlock libera el mutex de la clave.
func (k *KMutex) Unlock(key string) {
	k.mu.Lock()
	e, ok := k.locks[key]
	if ok {
		e.refs--
		if e.refs == 0 {
			delete(k.locks, key)
		}
	}
	k.mu.Unlock()

	if ok {
		e.mu.Unlock()
	}
}
