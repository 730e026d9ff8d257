// Package repository implements the reference envelope store for PostgreSQL
// and MySQL. Each row holds one encrypted field value together with the
// context metadata needed to re-derive its subkey during rotation.
package repository

import (
	"encoding/json"

	cryptoDomain "github.com/allisson/fieldcrypt/internal/crypto/domain"
	apperrors "github.com/allisson/fieldcrypt/internal/errors"
)

// aadFieldDoc is the persisted JSON shape of one bound plaintext attribute.
// Array order is significant and preserved.
type aadFieldDoc struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

func marshalAADFields(fields []cryptoDomain.AADField) ([]byte, error) {
	docs := make([]aadFieldDoc, 0, len(fields))
	for _, f := range fields {
		docs = append(docs, aadFieldDoc{Name: f.Name, Value: string(f.Value)})
	}

	data, err := json.Marshal(docs)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to marshal aad fields")
	}
	return data, nil
}

func unmarshalAADFields(data []byte) ([]cryptoDomain.AADField, error) {
	if len(data) == 0 {
		return nil, nil
	}

	var docs []aadFieldDoc
	if err := json.Unmarshal(data, &docs); err != nil {
		return nil, apperrors.Wrap(err, "failed to unmarshal aad fields")
	}
	if len(docs) == 0 {
		return nil, nil
	}

	fields := make([]cryptoDomain.AADField, 0, len(docs))
	for _, d := range docs {
		fields = append(fields, cryptoDomain.AADField{Name: d.Name, Value: []byte(d.Value)})
	}
	return fields, nil
}
