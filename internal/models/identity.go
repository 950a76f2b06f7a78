package models

import "strings"

// NormalizeKey trims and upper-cases a field so keys compare case-insensitively.
func NormalizeKey(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// IdentityKey builds the NOME|SOBRENOME|BLOCO|APARTAMENTO identity.
func IdentityKey(nome, sobrenome, bloco, apartamento string) string {
	return strings.Join([]string{
		NormalizeKey(nome),
		NormalizeKey(sobrenome),
		NormalizeKey(bloco),
		NormalizeKey(apartamento),
	}, "|")
}

// UnitKey builds the BLOCO|APARTAMENTO key.
func UnitKey(bloco, apartamento string) string {
	return NormalizeKey(bloco) + "|" + NormalizeKey(apartamento)
}

// SplitIdentity is the inverse of IdentityKey. Missing parts come back empty.
func SplitIdentity(identity string) (nome, sobrenome, bloco, apartamento string) {
	parts := strings.SplitN(identity, "|", 4)
	for len(parts) < 4 {
		parts = append(parts, "")
	}
	return parts[0], parts[1], parts[2], parts[3]
}
