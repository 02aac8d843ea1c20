package app

import "context"

// ThreadSummary describes the replies under a message: how many there are
// and who wrote the latest one. Timestamp is in Unix milliseconds.
type ThreadSummary struct {
	Count     int
	Image     string
	Timestamp int64
	Name      string
}

// threadSummary falls back to the zero summary when the author of the latest
// reply cannot be resolved.
func (s *Service) threadSummary(ctx context.Context, parentID string) (ThreadSummary, error) {
	stats, err := s.store.GetThreadStats(ctx, parentID)
	if err != nil {
		return ThreadSummary{}, err
	}
	if stats.Count == 0 || stats.Last == nil {
		return ThreadSummary{}, nil
	}
	author, err := s.populateMember(ctx, stats.Last.MemberID)
	if err != nil {
		return ThreadSummary{}, err
	}
	if author == nil {
		return ThreadSummary{}, nil
	}
	return ThreadSummary{
		Count:     stats.Count,
		Image:     author.User.Image,
		Timestamp: stats.Last.CreatedAt.UnixMilli(),
		Name:      author.User.Name,
	}, nil
}
