package database

import "errors"

// Iterator walks the chain from a starting hash back to genesis, fetching
// one block per call to Next.
type Iterator struct {
	db      *Database
	current string
	err     error
}

// Iterator returns an iterator positioned at the current tip.
func (db *Database) Iterator() *Iterator {
	return &Iterator{
		db:      db,
		current: db.TipHash(),
	}
}

// Next returns the next block walking toward genesis. It returns false once
// a block can't be found, which includes reaching genesis. Check Err for a
// failure other than reaching the end.
func (it *Iterator) Next() (Block, bool) {
	if it.Done() {
		return Block{}, false
	}

	block, err := it.db.GetBlock(it.current)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			it.err = err
		}
		it.current = ""
		return Block{}, false
	}

	it.current = block.PrevBlockHash

	return block, true
}

// Done reports whether the walk has ended.
func (it *Iterator) Done() bool {
	return it.current == "" || it.err != nil
}

// Err returns the first error other than not found that ended the walk.
func (it *Iterator) Err() error {
	return it.err
}

// Reset positions the iterator back at the current tip.
func (it *Iterator) Reset() {
	it.current = it.db.TipHash()
	it.err = nil
}
