package roster

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

type redisRepo struct {
	rdb   *redis.Client
	names ListNames
}

func NewRedisRepo(rdb *redis.Client, names ListNames) Repo {
	return &redisRepo{rdb: rdb, names: names}
}

// key 约定：
//
//	list: roster:list:{name}            -> List(entry,...)
//	tmp : roster:list:{name}:tmp:{uuid} -> 重写时的临时列表，RENAME 后消失
func (r *redisRepo) listKey(c Category) string {
	return fmt.Sprintf("roster:list:%s", r.names.Name(c))
}

func (r *redisRepo) ReadAll(ctx context.Context, c Category) ([]string, error) {
	rows, err := r.rdb.LRange(ctx, r.listKey(c), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *redisRepo) Append(ctx context.Context, c Category, entry string) error {
	return r.rdb.RPush(ctx, r.listKey(c), entry).Err()
}

// ReplaceAll 先写临时 key 再 RENAME 覆盖，MULTI 内执行，不会出现名单被清空的中间态。
func (r *redisRepo) ReplaceAll(ctx context.Context, c Category, entries []string) error {
	key := r.listKey(c)
	_, err := r.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		if len(entries) == 0 {
			p.Del(ctx, key)
			return nil
		}
		tmp := fmt.Sprintf("%s:tmp:%s", key, uuid.NewString())
		values := make([]any, len(entries))
		for i, e := range entries {
			values[i] = e
		}
		p.RPush(ctx, tmp, values...)
		p.Rename(ctx, tmp, key)
		return nil
	})
	return err
}
