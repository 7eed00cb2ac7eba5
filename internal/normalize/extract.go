package normalize

// Extract locates the array of raw records inside one provider payload.
// Unknown shapes yield an empty result; it never fails.
//
// Probing order: a bare array; the first list key at the top level (or every
// partial-list key concatenated when several coexist); then the known wrapper
// shapes: columnVoList[].bookList, cell.books or cell{...}, data{...}, data.data{...},
// result{...}. An empty wrapper falls through to the next shape.
func Extract(payload any, table AliasTable) []map[string]any {
	switch value := payload.(type) {
	case []any:
		return records(value)
	case map[string]any:
		if list, ok := levelList(value, table); ok {
			return records(list)
		}
		return records(wrappedList(value, table))
	default:
		return nil
	}
}

// levelList applies the key rules to one object level.
func levelList(object map[string]any, table AliasTable) ([]any, bool) {
	if combined, ok := combinePartials(object); ok {
		return combined, true
	}
	for _, key := range table.ListKeys {
		if list, ok := object[key].([]any); ok {
			return list, true
		}
	}
	return nil, false
}

// combinePartials concatenates sibling partial lists when two or more are present.
func combinePartials(object map[string]any) ([]any, bool) {
	var (
		found    int
		combined []any
	)
	for _, key := range partialListKeys {
		list, ok := object[key].([]any)
		if !ok {
			continue
		}
		found++
		combined = append(combined, list...)
	}
	if found < 2 {
		return nil, false
	}
	return combined, true
}

func wrappedList(object map[string]any, table AliasTable) []any {
	if columns, ok := object["columnVoList"].([]any); ok {
		var flattened []any
		for _, column := range columns {
			columnObject, ok := column.(map[string]any)
			if !ok {
				continue
			}
			if books, ok := columnObject["bookList"].([]any); ok {
				flattened = append(flattened, books...)
			}
		}
		if len(flattened) > 0 {
			return flattened
		}
	}

	if cell, ok := object["cell"].(map[string]any); ok {
		if books, ok := cell["books"].([]any); ok && len(books) > 0 {
			return books
		}
		if list, ok := levelList(cell, table); ok && len(list) > 0 {
			return list
		}
	}

	if data, ok := object["data"].(map[string]any); ok {
		if list, ok := levelList(data, table); ok {
			return list
		}
		// covers data.data and wrappers nested under data
		if list := wrappedList(data, table); len(list) > 0 {
			return list
		}
	}

	if result, ok := object["result"].(map[string]any); ok {
		if list, ok := levelList(result, table); ok {
			return list
		}
		if list := wrappedList(result, table); len(list) > 0 {
			return list
		}
	}
	return nil
}

func records(list []any) []map[string]any {
	if len(list) == 0 {
		return nil
	}
	out := make([]map[string]any, 0, len(list))
	for _, entry := range list {
		if record, ok := entry.(map[string]any); ok {
			out = append(out, record)
		}
	}
	return out
}
