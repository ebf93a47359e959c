package tokenizer

// EncodeBatch encodes reports into a rectangular target batch. Sequences are
// truncated to maxSeqLen (0 means no limit) and right-padded with the
// sentinel; masks are 1 over real positions and 0 over padding.
func (t *Tokenizer) EncodeBatch(reports []string, maxSeqLen int) (ids [][]int, masks [][]int) {
	encoded := make([][]int, len(reports))
	longest := 0
	for i, r := range reports {
		seq := t.Encode(r)
		if maxSeqLen > 0 && len(seq) > maxSeqLen {
			seq = seq[:maxSeqLen]
		}
		encoded[i] = seq
		if len(seq) > longest {
			longest = len(seq)
		}
	}

	ids = make([][]int, len(reports))
	masks = make([][]int, len(reports))
	for i, seq := range encoded {
		row := make([]int, longest)
		mask := make([]int, longest)
		copy(row, seq)
		for j := range seq {
			mask[j] = 1
		}
		ids[i] = row
		masks[i] = mask
	}
	return ids, masks
}
