package cache

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/redis/go-redis/v9"
)

// ProductsKey 商品列表的Sorted Set，score為商品ID，member為商品JSON
const ProductsKey = "products"

// ProductCache 以Redis Sorted Set快取商品列表
type ProductCache struct {
	rdb *redis.Client
}

func NewProductCache(rdb *redis.Client) *ProductCache {
	return &ProductCache{rdb: rdb}
}

// List 依商品ID排序回傳所有快取商品，ok為false代表快取為空
func (pc *ProductCache) List(ctx context.Context) (members []json.RawMessage, ok bool, err error) {
	values, err := pc.rdb.ZRange(ctx, ProductsKey, 0, -1).Result()
	if err != nil {
		return nil, false, err
	}
	if len(values) == 0 {
		return nil, false, nil
	}

	members = make([]json.RawMessage, 0, len(values))
	for _, value := range values {
		members = append(members, json.RawMessage(value))
	}
	return members, true, nil
}

// Put 新增或取代單一商品，快取尚未建立時不寫入，留待下次讀取時重建
func (pc *ProductCache) Put(ctx context.Context, productID uint, productJSON []byte) error {
	score := strconv.FormatUint(uint64(productID), 10)

	return pc.rdb.Watch(ctx, func(tx *redis.Tx) error {
		exists, err := tx.Exists(ctx, ProductsKey).Result()
		if err != nil || exists == 0 {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.ZRemRangeByScore(ctx, ProductsKey, score, score)
			pipe.ZAdd(ctx, ProductsKey, redis.Z{
				Score:  float64(productID),
				Member: productJSON,
			})
			return nil
		})
		return err
	}, ProductsKey)
}

// Remove 移除單一商品
func (pc *ProductCache) Remove(ctx context.Context, productID uint) error {
	score := strconv.FormatUint(uint64(productID), 10)
	return pc.rdb.ZRemRangeByScore(ctx, ProductsKey, score, score).Err()
}

// Rebuild 以資料庫內容重建整個快取
func (pc *ProductCache) Rebuild(ctx context.Context, products map[uint][]byte) error {
	_, err := pc.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, ProductsKey)
		for productID, productJSON := range products {
			pipe.ZAdd(ctx, ProductsKey, redis.Z{
				Score:  float64(productID),
				Member: productJSON,
			})
		}
		return nil
	})
	return err
}

// Invalidate 清除快取，下次讀取時重建
func (pc *ProductCache) Invalidate(ctx context.Context) error {
	return pc.rdb.Del(ctx, ProductsKey).Err()
}
