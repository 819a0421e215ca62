package cluster

import (
	"context"

	"yqhp/matmul-engine/pkg/types"
)

// Filtered is a read view of a membership that hides members rejected by a
// predicate. Writes go to the underlying membership unchanged.
type Filtered struct {
	Membership
	keep func(*types.MemberInfo) bool
}

// Filter wraps m so that Members, Size and Watch only report members for
// which keep returns true.
func Filter(m Membership, keep func(*types.MemberInfo) bool) *Filtered {
	return &Filtered{Membership: m, keep: keep}
}

// Members implements Membership.
func (f *Filtered) Members(ctx context.Context) ([]*types.MemberInfo, error) {
	all, err := f.Membership.Members(ctx)
	if err != nil {
		return nil, err
	}
	kept := make([]*types.MemberInfo, 0, len(all))
	for _, m := range all {
		if f.keep(m) {
			kept = append(kept, m)
		}
	}
	return kept, nil
}

// Size implements Membership.
func (f *Filtered) Size(ctx context.Context) (int, error) {
	members, err := f.Members(ctx)
	if err != nil {
		return 0, err
	}
	return len(members), nil
}

// Watch implements Membership. Events that carry no member record are passed through.
func (f *Filtered) Watch(ctx context.Context) (<-chan *types.MemberEvent, error) {
	in, err := f.Membership.Watch(ctx)
	if err != nil {
		return nil, err
	}
	out := make(chan *types.MemberEvent, watchBuffer)
	go func() {
		defer close(out)
		for event := range in {
			if event.Member != nil && !f.keep(event.Member) {
				continue
			}
			select {
			case out <- event:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}
