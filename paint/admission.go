package paint

// Admission control: per-owner and global quotas checked before a new
// submission may go out. The quota check and the reservation it grants
// happen under the registry lock, so concurrent callers can never both
// observe "under limit" for the last remaining slot. A reservation is
// consumed by Put on a successful submit or dropped by Release when the
// submit fails.

// TryReserve admits one new submission for ownerID, or reports why not.
// A non-positive limit disables that quota.
func (r *Registry) TryReserve(ownerID string, ownerLimit, globalLimit int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.expireLocked()
	if ownerLimit > 0 && r.pendingCountLocked(ownerID)+r.reserved[ownerID] >= ownerLimit {
		return ErrOwnerLimit
	}
	if globalLimit > 0 && r.pendingCountLocked("")+r.reservedTotal >= globalLimit {
		return ErrGlobalLimit
	}
	r.reserved[ownerID]++
	r.reservedTotal++
	return nil
}

// Release drops one reservation held by ownerID after a failed submit.
func (r *Registry) Release(ownerID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.reserved[ownerID] <= 0 {
		return
	}
	r.reserved[ownerID]--
	if r.reserved[ownerID] == 0 {
		delete(r.reserved, ownerID)
	}
	r.reservedTotal--
}
