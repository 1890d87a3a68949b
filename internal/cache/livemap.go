// Package cache maintains the Redis live-map projection: a GEO set of
// latest bus positions plus per-bus metadata hashes. It is a read-side
// convenience fed from the event stream; the Postgres history remains
// the authoritative record.
package cache

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/suchiii29/campushub/internal/models"
)

type LiveMap struct {
	client *redis.Client
	key    string
}

func NewLiveMap(addr, password, key string) *LiveMap {
	c := redis.NewClient(&redis.Options{Addr: addr, Password: password})
	return &LiveMap{client: c, key: key}
}

func (m *LiveMap) Ping(ctx context.Context) error {
	return m.client.Ping(ctx).Err()
}

func (m *LiveMap) Close() error { return m.client.Close() }

// Update stores one position: GEOADD for the coordinate plus a hash
// for the fields GEO cannot carry.
func (m *LiveMap) Update(ctx context.Context, pos models.BusPosition) error {
	if _, err := m.client.GeoAdd(ctx, m.key, &redis.GeoLocation{
		Longitude: pos.Longitude,
		Latitude:  pos.Latitude,
		Name:      pos.BusNumber,
	}).Result(); err != nil {
		return err
	}
	return m.client.HSet(ctx, metaKey(pos.BusNumber), map[string]interface{}{
		"speed":       strconv.FormatFloat(pos.Speed, 'f', -1, 64),
		"driver":      pos.DriverID,
		"recorded_at": pos.RecordedAt.Format(time.RFC3339Nano),
	}).Err()
}

// Nearby returns buses within radiusM meters of the point, closest
// first.
func (m *LiveMap) Nearby(ctx context.Context, lat, lng, radiusM float64, limit int) ([]models.BusPosition, error) {
	res, err := m.client.GeoRadius(ctx, m.key, lng, lat, &redis.GeoRadiusQuery{
		Radius: radiusM, Unit: "m", WithCoord: true, Count: limit, Sort: "ASC",
	}).Result()
	if err != nil {
		return nil, err
	}
	out := make([]models.BusPosition, 0, len(res))
	for _, g := range res {
		pos := models.BusPosition{BusNumber: g.Name, Latitude: g.Latitude, Longitude: g.Longitude}
		if meta, err := m.client.HGetAll(ctx, metaKey(g.Name)).Result(); err == nil {
			if v, ok := meta["speed"]; ok {
				if f, err := strconv.ParseFloat(v, 64); err == nil {
					pos.Speed = f
				}
			}
			pos.DriverID = meta["driver"]
			if v, ok := meta["recorded_at"]; ok {
				if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
					pos.RecordedAt = t
				}
			}
		}
		out = append(out, pos)
	}
	return out, nil
}

func metaKey(busNumber string) string { return "bus:meta:" + busNumber }
