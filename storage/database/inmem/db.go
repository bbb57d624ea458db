// Package inmemdb provides map-backed repositories for tests and local hacking.
package inmemdb

import (
	"sync"

	"github.com/trezcool/kikundi/core/chat"
	"github.com/trezcool/kikundi/core/group"
	"github.com/trezcool/kikundi/core/resource"
	"github.com/trezcool/kikundi/core/session"
	"github.com/trezcool/kikundi/core/user"
)

type (
	DB struct {
		user     *userTable
		group    *groupTable
		session  *sessionTable
		message  *messageTable
		resource *resourceTable
	}

	userTable struct {
		sync.RWMutex
		table map[string]*user.User
	}

	groupTable struct {
		sync.RWMutex
		table   map[string]*group.Group
		members map[string][]group.Member // keyed by group ID
	}

	sessionTable struct {
		sync.RWMutex
		table map[string]*session.Session
	}

	messageTable struct {
		sync.RWMutex
		table map[string]*chat.Message
	}

	resourceTable struct {
		sync.RWMutex
		table map[string]*resource.Resource
	}
)

func Open() (*DB, error) {
	db := &DB{
		user:     &userTable{table: make(map[string]*user.User)},
		group:    &groupTable{table: make(map[string]*group.Group), members: make(map[string][]group.Member)},
		session:  &sessionTable{table: make(map[string]*session.Session)},
		message:  &messageTable{table: make(map[string]*chat.Message)},
		resource: &resourceTable{table: make(map[string]*resource.Resource)},
	}
	return db, nil
}
