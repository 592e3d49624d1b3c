package domain

// ResolveReferences partitions records by whether their member reference
// resolves to a member of the same admin. Every record lands in exactly one
// partition; input order is preserved in both.
func ResolveReferences(records []AttendanceRecord, members map[string]Member) Resolution {
	res := Resolution{
		Valid:    make([]ResolvedRecord, 0, len(records)),
		Orphaned: make([]OrphanedRecord, 0),
	}
	for _, record := range records {
		member, ok := members[record.MemberID]
		if record.MemberID == "" || !ok || member.AdminID != record.AdminID {
			res.Orphaned = append(res.Orphaned, OrphanedRecord{RecordID: record.ID, Date: record.Date})
			continue
		}
		res.Valid = append(res.Valid, ResolvedRecord{Record: record, Member: member})
	}
	return res
}

// memberIDs returns the distinct non-empty member references in order of first appearance.
func memberIDs(records []AttendanceRecord) []string {
	seen := make(map[string]struct{}, len(records))
	ids := make([]string, 0, len(records))
	for _, record := range records {
		if record.MemberID == "" {
			continue
		}
		if _, ok := seen[record.MemberID]; ok {
			continue
		}
		seen[record.MemberID] = struct{}{}
		ids = append(ids, record.MemberID)
	}
	return ids
}
