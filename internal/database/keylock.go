package database

import (
	"sync"
)

// KeyedMutex 按键互斥锁表
// 账本的读改写以账户为粒度串行化：同一账户的操作互斥，不同账户互不阻塞。
// 行级锁（SELECT ... FOR UPDATE）在 SQLite 上不生效，进程内锁作为补充。
type KeyedMutex struct {
	mu    sync.Mutex
	locks map[uint]*entry
}

type entry struct {
	mu   sync.Mutex
	refs int
}

// NewKeyedMutex 创建按键互斥锁表
func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{
		locks: make(map[uint]*entry),
	}
}

// Lock 锁定指定键
func (k *KeyedMutex) Lock(key uint) {
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

// Unlock 解锁指定键
func (k *KeyedMutex) Unlock(key uint) {
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
