package tree

// enqueueFlush submits id to the flush-request queue, tracked by
// flushWG so ForceFlush can wait for it (and everything it in turn
// triggers) to finish.
func (t *Tree) enqueueFlush(id uint32) {
	t.flushWG.Add(1)
	t.flushCh <- id
}

// runFlushers starts the background worker pool that drains the
// flush-request queue. Workers exit once flushCh is closed and empty.
func (t *Tree) runFlushers(workers int) {
	t.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer t.wg.Done()
			for id := range t.flushCh {
				err := t.flushControlBlock(id)
				t.flushWG.Done()
				if err != nil {
					t.fail(err)
				}
			}
		}()
	}
}
