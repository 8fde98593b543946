package blueprint

import "strings"

// IDDelimiter replaces path separators in derived blueprint identifiers.
const IDDelimiter = "__"

// BlueprintsDir is the root directory of blueprint files within the
// configuration source tree.
const BlueprintsDir = "blueprints/"

// blueprintExtensions are the recognised blueprint file extensions, in
// match order. Compound spellings are checked before the short form.
var blueprintExtensions = []string{".yaml", ".yml", ".json"}

// DeriveID derives the blueprint identifier from a source path. Directory
// separators become the fixed double-underscore delimiter and the blueprint
// file extension is stripped. The result is a pure function of the path;
// any id declared inside the file is ignored by the parser.
//
//	blueprints/health/clinical/advice.yaml -> health__clinical__advice
func DeriveID(path string) string {
	rel := strings.TrimPrefix(path, BlueprintsDir)

	for _, ext := range blueprintExtensions {
		if strings.HasSuffix(rel, ext) {
			rel = strings.TrimSuffix(rel, ext)

			break
		}
	}

	return strings.ReplaceAll(rel, "/", IDDelimiter)
}

// IsReservedID reports whether the identifier begins with the reserved
// prefix. Reserved ids are set aside for system-injected blueprints
// (PR evaluations, API runs); user blueprints deriving to one are skipped.
func IsReservedID(id string) bool {
	return strings.HasPrefix(id, reservedPrefix)
}

// HasBlueprintExtension reports whether the path names a blueprint file.
func HasBlueprintExtension(path string) bool {
	for _, ext := range blueprintExtensions {
		if strings.HasSuffix(path, ext) {
			return true
		}
	}

	return false
}
