package probe

import (
	"strings"
)

// splitFuncName splits a runtime function name such as
// "github.com/a/b.(*Account).Deposit" into the receiver type and the method
// name. Plain functions have an empty type. Closures report the function that
// declares them.
func splitFuncName(fullName string) (definedType, method string) {
	name := strings.ReplaceAll(fullName, "[...]", "")
	if slash := strings.LastIndex(name, "/"); slash >= 0 {
		name = name[slash+1:]
	}

	dot := strings.Index(name, ".")
	if dot < 0 {
		return "", name
	}

	name = name[dot+1:]

	if strings.HasPrefix(name, "(") {
		end := strings.Index(name, ")")
		if end < 0 {
			return "", name
		}

		definedType = strings.TrimPrefix(name[1:end], "*")
		name = strings.TrimPrefix(name[end+1:], ".")

		return stripGeneric(definedType), firstPart(name)
	}

	parts := strings.Split(name, ".")
	if len(parts) == 1 || isClosureName(parts[1]) {
		return "", stripGeneric(parts[0])
	}

	return stripGeneric(parts[0]), stripGeneric(parts[1])
}

func firstPart(name string) string {
	if dot := strings.Index(name, "."); dot >= 0 {
		return name[:dot]
	}

	return name
}

func stripGeneric(name string) string {
	if open := strings.Index(name, "["); open >= 0 {
		return name[:open]
	}

	return name
}

func isClosureName(name string) bool {
	if !strings.HasPrefix(name, "func") || len(name) == len("func") {
		return false
	}

	for _, c := range name[len("func"):] {
		if c < '0' || c > '9' {
			return false
		}
	}

	return true
}
