// Package redis connects to Redis with go-redis/v9.
//
// Connect retries the initial ping according to Config, which is parsed from
// REDIS_* environment variables. Healthcheck turns a client into a readiness
// probe. The key prefix in Config is consumed by the Redis-backed session store.
//
//	client, err := redis.Connect(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	defer client.Close()
package redis
