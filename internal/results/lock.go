package results

import (
	"errors"

	"github.com/gofrs/flock"
	"github.com/rotisserie/eris"
)

// ErrLocked is returned when another run holds the table lock.
var ErrLocked = errors.New("results: table is locked by another run")

// Lock takes an exclusive advisory lock next to the table so selection and
// appends of concurrent runs cannot interleave. Release with Unlock.
func Lock(t Table) (*flock.Flock, error) {
	fl := flock.New(t.Path() + ".lock")
	ok, err := fl.TryLock()
	if err != nil {
		return nil, eris.Wrapf(err, "results: lock %s", fl.Path())
	}
	if !ok {
		return nil, eris.Wrap(ErrLocked, fl.Path())
	}
	return fl, nil
}
