package es

import (
	"context"
	"errors"
	log "log/slog"
	"strconv"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/typedapi/types"
	"github.com/elastic/go-elasticsearch/v8/typedapi/types/enums/textquerytype"
	"github.com/elastic/go-elasticsearch/v8/typedapi/types/enums/versiontype"
	"github.com/goccy/go-json"
)

type UserRepo interface {
	IndexUser(ctx context.Context, user *UserES, version int64) error
	DeleteUser(ctx context.Context, id uint64) error
	SearchUsers(ctx context.Context, keyword string, excludeID uint64, from, size int) ([]uint64, error)
}

type UserRepoImpl struct {
	client *elasticsearch.TypedClient
	index  string
}

func NewUserRepo(client *elasticsearch.TypedClient, index string) UserRepo {
	return &UserRepoImpl{client: client, index: index}
}

// IndexUser version 取 updated_at 毫秒, 旧数据不会覆盖新数据
func (s *UserRepoImpl) IndexUser(ctx context.Context, user *UserES, version int64) error {
	_, err := s.client.Index(s.index).
		Id(strconv.FormatUint(user.ID, 10)).
		Document(user).
		Version(strconv.FormatInt(version, 10)).
		VersionType(versiontype.External).
		Do(ctx)

	if err != nil {
		var e *types.ElasticsearchError
		if errors.As(err, &e) && e.Status == ConflictCode {
			log.WarnContext(ctx, "Version conflict detected, skipping old data",
				"user_id", user.ID,
				"version", version)
			return nil
		}
		return err
	}
	return nil
}

func (s *UserRepoImpl) DeleteUser(ctx context.Context, id uint64) error {
	_, err := s.client.Delete(s.index, strconv.FormatUint(id, 10)).Do(ctx)
	if err != nil {
		var e *types.ElasticsearchError
		if errors.As(err, &e) && e.Status == NotFoundCode {
			log.WarnContext(ctx, "User already deleted or not found in ES", "id", id)
			return nil
		}
		return err
	}
	return nil
}

// SearchUsers 按姓名 / 邮箱前缀匹配, 返回命中用户 ID
func (s *UserRepoImpl) SearchUsers(ctx context.Context, keyword string, excludeID uint64, from, size int) ([]uint64, error) {
	resp, err := s.client.Search().
		Index(s.index).
		Query(&types.Query{
			Bool: &types.BoolQuery{
				Must: []types.Query{{
					MultiMatch: &types.MultiMatchQuery{
						Query:  keyword,
						Fields: []string{"name", "email"},
						Type:   &textquerytype.Boolprefix,
					},
				}},
				MustNot: []types.Query{{
					Term: map[string]types.TermQuery{"id": {Value: excludeID}},
				}},
			},
		}).
		From(from).
		Size(size).
		Do(ctx)
	if err != nil {
		return nil, err
	}

	ids := make([]uint64, 0, len(resp.Hits.Hits))
	for _, hit := range resp.Hits.Hits {
		if hit.Source_ == nil {
			continue
		}
		var user UserES
		if err = json.Unmarshal(hit.Source_, &user); err != nil {
			continue
		}
		ids = append(ids, user.ID)
	}
	return ids, nil
}
