package payload

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/meghashyamc/docindex/db/termindex"
)

type rawObject struct {
	prefix   string
	name     string
	doc      int
	objType  int
	priority int
	anchor   string
}

func (o rawObject) fullName() string {
	if o.prefix == "" {
		return o.name
	}
	return o.prefix + "." + o.name
}

// decodeObjects accepts both encodings generators use for the objects table:
//
//	{"prefix": {"name": [doc, type, priority, anchor]}}
//	{"prefix": [[doc, type, priority, anchor, "name"], ...]}
func decodeObjects(table map[string]json.RawMessage) ([]rawObject, []error) {
	var objects []rawObject
	var errs []error

	prefixes := make([]string, 0, len(table))
	for prefix := range table {
		prefixes = append(prefixes, prefix)
	}
	sort.Strings(prefixes)

	for _, prefix := range prefixes {
		raw := table[prefix]

		var byName map[string][]json.RawMessage
		if err := json.Unmarshal(raw, &byName); err == nil {
			names := make([]string, 0, len(byName))
			for name := range byName {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				obj, err := decodeObjectEntry(prefix, name, byName[name])
				if err != nil {
					errs = append(errs, err)
					continue
				}
				objects = append(objects, obj)
			}
			continue
		}

		var entries [][]json.RawMessage
		if err := json.Unmarshal(raw, &entries); err != nil {
			errs = append(errs, fmt.Errorf("objects under prefix %q are neither a map nor a list", prefix))
			continue
		}
		for i, entry := range entries {
			if len(entry) < 5 {
				errs = append(errs, fmt.Errorf("object %d under prefix %q has %d fields, expected 5", i, prefix, len(entry)))
				continue
			}
			var name string
			if err := json.Unmarshal(entry[4], &name); err != nil {
				errs = append(errs, fmt.Errorf("object %d under prefix %q has an invalid name", i, prefix))
				continue
			}
			obj, err := decodeObjectEntry(prefix, name, entry[:4])
			if err != nil {
				errs = append(errs, err)
				continue
			}
			objects = append(objects, obj)
		}
	}

	return objects, errs
}

func decodeObjectEntry(prefix string, name string, fields []json.RawMessage) (rawObject, error) {
	obj := rawObject{prefix: prefix, name: name}
	if len(fields) < 4 {
		return obj, fmt.Errorf("object %q has %d fields, expected 4", obj.fullName(), len(fields))
	}

	targets := []any{&obj.doc, &obj.objType, &obj.priority, &obj.anchor}
	for i, target := range targets {
		if err := json.Unmarshal(fields[i], target); err != nil {
			return obj, fmt.Errorf("object %q has an invalid field %d: %w", obj.fullName(), i, err)
		}
	}

	return obj, nil
}

type objectKind struct {
	domain      string
	name        string
	description string
}

// lookupKind reads objnames first and falls back to objtypes ("py:function").
func lookupKind(raw *rawIndex, objType int) (objectKind, bool) {
	key := strconv.Itoa(objType)
	if names, ok := raw.ObjNames[key]; ok && len(names) >= 2 {
		kind := objectKind{domain: names[0], name: names[1]}
		if len(names) >= 3 {
			kind.description = names[2]
		}
		return kind, true
	}

	if objtype, ok := raw.ObjTypes[key]; ok {
		domain, name, found := strings.Cut(objtype, ":")
		if !found {
			return objectKind{name: objtype}, true
		}
		return objectKind{domain: domain, name: name}, true
	}

	return objectKind{}, false
}

func resolveObject(raw *rawIndex, obj rawObject) termindex.Object {
	kind, _ := lookupKind(raw, obj.objType)
	fullName := obj.fullName()

	anchor := obj.anchor
	switch anchor {
	case "":
		anchor = fullName
	case "-":
		anchor = kind.name + "-" + fullName
	}

	return termindex.Object{
		Prefix:      obj.prefix,
		Name:        obj.name,
		FullName:    fullName,
		Doc:         termindex.DocID(obj.doc),
		Domain:      kind.domain,
		Kind:        kind.name,
		Description: kind.description,
		Priority:    obj.priority,
		Anchor:      anchor,
	}
}
