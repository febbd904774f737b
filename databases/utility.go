package databases

import "go.mongodb.org/mongo-driver/mongo/options"

// DefaultPageSize is used when a caller asks for a non-positive page size
const DefaultPageSize = 20

type mongoPaginate struct {
	limit int64
	page  int64
}

// newMongoPaginate builds pagination for 1-based pages
func newMongoPaginate(limit, page int) *mongoPaginate {
	if limit <= 0 {
		limit = DefaultPageSize
	}
	if page <= 0 {
		page = 1
	}
	return &mongoPaginate{
		limit: int64(limit),
		page:  int64(page),
	}
}

func (mp *mongoPaginate) getPaginatedOpts() *options.FindOptions {
	l := mp.limit
	skip := mp.page*mp.limit - mp.limit
	fOpt := options.FindOptions{Limit: &l, Skip: &skip}

	return &fOpt
}
