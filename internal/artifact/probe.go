package artifact

import "sync"

// ProbeListings parses embedded timestamps for every descriptor across several
// listing frames concurrently and merges the frames into one candidate set.
// Probing is order-independent; merged descriptors are renumbered so that
// SequencePosition stays unique and follows frame order.
func ProbeListings(frames [][]Descriptor) []Descriptor {
	probed := make([][]Descriptor, len(frames))

	var wg sync.WaitGroup
	for i, frame := range frames {
		wg.Add(1)
		go func(i int, frame []Descriptor) {
			defer wg.Done()
			out := make([]Descriptor, len(frame))
			for j, d := range frame {
				if d.EmbeddedTimestamp == nil {
					if ts, ok := ParseEmbeddedTimestamp(d.DisplayText); ok {
						d.EmbeddedTimestamp = &ts
					}
				}
				out[j] = d
			}
			probed[i] = out
		}(i, frame)
	}
	wg.Wait()

	var merged []Descriptor
	for _, frame := range probed {
		for _, d := range frame {
			d.SequencePosition = len(merged)
			merged = append(merged, d)
		}
	}
	return merged
}
