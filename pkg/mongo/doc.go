// Package mongo connects to MongoDB through the official v2 driver.
//
// Connect pings the server with retries before handing out the client, so a
// process that starts before its database waits instead of failing.
//
//	db, err := mongo.Database(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	checks["mongo"] = mongo.Healthcheck(db.Client())
package mongo
