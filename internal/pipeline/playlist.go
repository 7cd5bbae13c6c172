package pipeline

import (
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/kikiluvv/lofiloop/internal/clips"
	"github.com/kikiluvv/lofiloop/internal/timeline"
)

// Shuffler permutes n elements in place. *math/rand/v2.Rand satisfies it.
type Shuffler interface {
	Shuffle(n int, swap func(i, j int))
}

// BuildPlaylist shuffles tracks and lays them end to end until the running
// length reaches target. The track that crosses target is kept whole. If the
// tracks run out first, the shorter playlist is returned as is.
func BuildPlaylist(tracks []*clips.Clip, target time.Duration, shuffler Shuffler) (*timeline.Timeline, error) {
	if len(tracks) == 0 {
		return nil, ErrEmptyLibrary
	}
	if shuffler == nil {
		return nil, fmt.Errorf("%w: shuffler is nil", ErrInvalidParameters)
	}

	order := make([]*clips.Clip, len(tracks))
	copy(order, tracks)
	shuffler.Shuffle(len(order), func(i, j int) {
		order[i], order[j] = order[j], order[i]
	})

	tl := timeline.New(clips.KindAudio)
	var total time.Duration
	for _, track := range order {
		tl.Append(timeline.Segment{Clip: track, Start: total})
		total += track.Duration

		if total >= target {
			break
		}
	}

	return tl, nil
}

// NewShuffler returns a PCG-backed shuffler for seed. A zero seed is replaced
// by one derived from the clock; the seed actually used is returned so a run
// can be replayed.
func NewShuffler(seed int64) (*rand.Rand, int64) {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return rand.New(rand.NewPCG(uint64(seed), uint64(seed)>>1)), seed
}
