package ram

import "errors"

// ErrBadSize indicates a memory size or kernel reservation that cannot
// describe a usable machine.
var ErrBadSize = errors.New("ram: bad memory size")
