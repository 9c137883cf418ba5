package wallet

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/Davincible/shardwallet/internal/client"
	"github.com/Davincible/shardwallet/pkg/sharestore"
)

var (
	ErrInvalidKeyMaterial        = errors.New("invalid key material")
	ErrShareDistributionFailed   = errors.New("failed to distribute server keyshare")
	ErrIncorrectPassword         = errors.New("incorrect password")
	ErrShareFetchFailed          = errors.New("failed to fetch server keyshare")
	ErrCombineIntegrityFailure   = errors.New("combined shares did not yield a valid scalar")
	ErrKeyDerivationMismatch     = errors.New("derived public key does not match wallet")
	ErrShareConsistencyViolation = errors.New("keyshares are inconsistent")
	ErrShareNotFound             = errors.New("keyshare not found")
	ErrNetworkTimeout            = errors.New("network timeout")

	ErrAlreadyFinalized = errors.New("active share already finalized")
	ErrBackupDiscarded  = errors.New("backup share already discarded")
)

// remoteError wraps a share store failure under kind and tags it with
// ErrShareNotFound or ErrNetworkTimeout when the cause is one of those.
func remoteError(kind error, err error) error {
	switch {
	case errors.Is(err, client.ErrShareNotFound), errors.Is(err, sharestore.ErrNotFound):
		return fmt.Errorf("%w: %w", kind, ErrShareNotFound)
	case isTimeout(err):
		return fmt.Errorf("%w: %w: %v", kind, ErrNetworkTimeout, err)
	default:
		return fmt.Errorf("%w: %w", kind, err)
	}
}

func isTimeout(err error) bool {
	if errors.Is(err, client.ErrNetworkTimeout) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
