package memory

import (
	"testing"

	"github.com/0xkonsti/chatd/pkg/user"
	"github.com/0xkonsti/chatd/pkg/user/storetest"
)

func TestStoreConformance(t *testing.T) {
	storetest.Run(t, func(t *testing.T) user.Store {
		return New()
	})
}
