package redisstore

import (
	"errors"
	"strconv"
	"time"

	"github.com/dmitrymomot/sessionkit/pkg/session"
)

func encode(rec *session.Record) map[string]any {
	flash := 0
	if rec.HasFlashMessage {
		flash = 1
	}
	data := rec.Data
	if data == nil {
		data = []byte{}
	}
	return map[string]any{
		fCompanyID:     rec.CompanyID,
		fUserID:        rec.UserID,
		fProfileID:     rec.ProfileID,
		fLanguageID:    rec.LanguageID,
		fToken:         rec.Token,
		fCSRFToken:     rec.CSRFToken,
		fFlash:         flash,
		fData:          data,
		fLastRequestAt: rec.LastRequestAt.UnixNano(),
	}
}

// decode rebuilds a record from a session hash. An empty data field decodes to nil.
func decode(id int64, f map[string]string) (*session.Record, error) {
	rec := &session.Record{
		ID:              id,
		LanguageID:      f[fLanguageID],
		Token:           f[fToken],
		CSRFToken:       f[fCSRFToken],
		HasFlashMessage: f[fFlash] == "1",
	}
	if d := f[fData]; d != "" {
		rec.Data = []byte(d)
	}

	var errs []error
	parse := func(name string) int64 {
		v, err := strconv.ParseInt(f[name], 10, 64)
		if err != nil {
			errs = append(errs, err)
		}
		return v
	}
	rec.CompanyID = parse(fCompanyID)
	rec.UserID = parse(fUserID)
	rec.ProfileID = parse(fProfileID)
	rec.LastRequestAt = time.Unix(0, parse(fLastRequestAt)).UTC()

	return rec, errors.Join(errs...)
}
