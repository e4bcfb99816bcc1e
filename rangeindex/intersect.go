package rangeindex

// Intersect computes the bitwise AND of results over their common aligned
// span and writes it into out. shortestIdx names the result with the
// smallest DocNum, used as the initial copy to minimize work. Returns the
// doc-count upper bound (the shortest result's DocNum; the bitmap itself,
// not this count, is authoritative), or 0 if the results share no span.
func Intersect(results []*Result, shortestIdx int, out *Result) int {
	if len(results) == 0 {
		return 0
	}

	minDoc := results[0].MinAligned()
	maxDoc := results[0].MaxAligned()
	for _, r := range results[1:] {
		if r.MinAligned() > minDoc {
			minDoc = r.MinAligned()
		}
		if r.MaxAligned() < maxDoc {
			maxDoc = r.MaxAligned()
		}
	}
	if maxDoc < minDoc {
		return 0
	}

	out.Resize(minDoc, maxDoc)
	out.orWords(results[shortestIdx].Ref(), results[shortestIdx].MinAligned())

	for i, r := range results {
		if i == shortestIdx {
			continue
		}
		out.andWords(r.Ref(), r.MinAligned(), r.MaxAligned())
	}

	out.SetDocNum(results[shortestIdx].DocNum())
	return out.DocNum()
}
