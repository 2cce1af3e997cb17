package companyimport

// KeySet answers whether a registration key already exists in the store.
type KeySet interface {
	Has(key string) bool
}

// KeySnapshot is a point-in-time copy of existing store keys.
type KeySnapshot map[string]struct{}

func (s KeySnapshot) Has(key string) bool {
	_, ok := s[key]
	return ok
}

type Resolution struct {
	Unique  []CompanyRecord
	InFile  int
	InStore int
}

func (r Resolution) Duplicates() int {
	return r.InFile + r.InStore
}

// Resolve drops in-file repeats (first row wins) and keys already in existing.
// Unique keeps the input order.
func Resolve(records []CompanyRecord, existing KeySet) Resolution {
	res := Resolution{Unique: make([]CompanyRecord, 0, len(records))}
	seen := make(map[string]struct{}, len(records))

	for _, rec := range records {
		if _, dup := seen[rec.CIN]; dup {
			res.InFile++
			continue
		}
		seen[rec.CIN] = struct{}{}

		if existing != nil && existing.Has(rec.CIN) {
			res.InStore++
			continue
		}
		res.Unique = append(res.Unique, rec)
	}
	return res
}
