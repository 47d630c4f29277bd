package feed

import (
	"encoding/json"
	"fmt"
	"io"
	"iter"

	"github.com/nickromney-org/release-notifier/pkg/types"
)

// Decode streams the elements of a top-level JSON array, one record per
// element, in array order. The sequence reads r as it goes, so it can only
// be ranged over once. Any malformed input yields a single
// *types.DecodeError and ends the sequence.
func Decode(r io.Reader) iter.Seq2[ReleaseRecord, error] {
	return func(yield func(ReleaseRecord, error) bool) {
		dec := json.NewDecoder(r)

		tok, err := dec.Token()
		if err != nil {
			yield(nil, &types.DecodeError{Err: err})
			return
		}
		if delim, ok := tok.(json.Delim); !ok || delim != '[' {
			yield(nil, &types.DecodeError{Err: fmt.Errorf("expected a JSON array, got %v", tok)})
			return
		}

		for dec.More() {
			var record ReleaseRecord
			if err := dec.Decode(&record); err != nil {
				yield(nil, &types.DecodeError{Err: err})
				return
			}
			if !yield(record, nil) {
				return
			}
		}

		if _, err := dec.Token(); err != nil {
			yield(nil, &types.DecodeError{Err: err})
		}
	}
}
