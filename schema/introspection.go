/*
 * SPDX-FileCopyrightText: © Lodestar Finance <dev@lodestar.finance>
 * SPDX-License-Identifier: Apache-2.0
 */

package schema

import (
	"fmt"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
)

// IntrospectionQuery is the full introspection request sent to the upstream
// endpoint once at startup.
const IntrospectionQuery = `
	query {
	  __schema {
		queryType { name }
		mutationType { name }
		subscriptionType { name }
		types {
		  ...FullType
		}
	  }
	}
	fragment FullType on __Type {
	  kind
	  name
	  fields(includeDeprecated: true) {
		name
		args {
		  ...InputValue
		}
		type {
		  ...TypeRef
		}
	  }
	  inputFields {
		...InputValue
	  }
	  interfaces {
		...TypeRef
	  }
	  enumValues(includeDeprecated: true) {
		name
	  }
	  possibleTypes {
		...TypeRef
	  }
	}
	fragment InputValue on __InputValue {
	  name
	  type { ...TypeRef }
	  defaultValue
	}
	fragment TypeRef on __Type {
	  kind
	  name
	  ofType {
		kind
		name
		ofType {
		  kind
		  name
		  ofType {
			kind
			name
			ofType {
			  kind
			  name
			  ofType {
				kind
				name
				ofType {
				  kind
				  name
				  ofType {
					kind
					name
				  }
				}
			  }
			}
		  }
		}
	  }
	}
  `

// IntrospectedSchema mirrors the JSON shape of an introspection response.
type IntrospectedSchema struct {
	Data Data `json:"data"`
}

type Data struct {
	Schema IntrospectionSchema `json:"__schema"`
}

type IntrospectionSchema struct {
	QueryType        *NamedTypeRef `json:"queryType"`
	MutationType     *NamedTypeRef `json:"mutationType"`
	SubscriptionType *NamedTypeRef `json:"subscriptionType"`
	Types            []GqlTypeDef  `json:"types"`
}

type NamedTypeRef struct {
	Name string `json:"name"`
}

type GqlTypeDef struct {
	Kind          string     `json:"kind"`
	Name          string     `json:"name"`
	Fields        []GqlField `json:"fields"`
	InputFields   []GqlInput `json:"inputFields"`
	EnumValues    []GqlEnum  `json:"enumValues"`
	Interfaces    []GqlType  `json:"interfaces"`
	PossibleTypes []GqlType  `json:"possibleTypes"`
}

type GqlField struct {
	Name string     `json:"name"`
	Args []GqlInput `json:"args"`
	Type GqlType    `json:"type"`
}

type GqlInput struct {
	Name         string      `json:"name"`
	Type         GqlType     `json:"type"`
	DefaultValue interface{} `json:"defaultValue"`
}

type GqlEnum struct {
	Name string `json:"name"`
}

// GqlType is a (possibly wrapped) type reference.  The nested ofType chain
// arrives as untyped JSON and is decoded level by level.
type GqlType struct {
	Kind   string      `json:"kind"`
	Name   string      `json:"name"`
	OfType interface{} `json:"ofType"`
}

// builtinScalars ship with every GraphQL schema and must not be redeclared.
var builtinScalars = map[string]bool{
	"String": true, "Int": true, "Float": true, "Boolean": true, "ID": true,
}

func typeRefString(in *GqlType) (string, error) {
	switch in.Kind {
	case "NON_NULL", "LIST":
		inner := &GqlType{}
		mapped, ok := in.OfType.(map[string]interface{})
		if !ok {
			return "", errors.Errorf("introspection %s type has no ofType", in.Kind)
		}
		if err := mapstructure.Decode(mapped, inner); err != nil {
			return "", errors.Wrap(err, "decoding ofType")
		}
		str, err := typeRefString(inner)
		if err != nil {
			return "", err
		}
		if in.Kind == "LIST" {
			return "[" + str + "]", nil
		}
		return str + "!", nil
	default:
		if in.Name == "" {
			return "", errors.New("introspection type reference has no name")
		}
		return in.Name, nil
	}
}

func writeArgs(b *strings.Builder, args []GqlInput) error {
	if len(args) == 0 {
		return nil
	}
	b.WriteString("(")
	for i, arg := range args {
		if i != 0 {
			b.WriteString(", ")
		}
		typ, err := typeRefString(&arg.Type)
		if err != nil {
			return err
		}
		fmt.Fprintf(b, "%s: %s", arg.Name, typ)
	}
	b.WriteString(")")
	return nil
}

func writeFields(b *strings.Builder, fields []GqlField) error {
	for _, fld := range fields {
		if strings.HasPrefix(fld.Name, "__") {
			continue
		}
		b.WriteString("\t" + fld.Name)
		if err := writeArgs(b, fld.Args); err != nil {
			return err
		}
		typ, err := typeRefString(&fld.Type)
		if err != nil {
			return err
		}
		b.WriteString(": " + typ + "\n")
	}
	return nil
}

// SDL renders the introspected schema back into schema-definition language,
// ready to be merged with the wrapper's extension declarations.  Types used
// internally by introspection itself and the built-in scalars are skipped.
func (is *IntrospectedSchema) SDL() (string, error) {
	sch := &is.Data.Schema
	if sch.QueryType == nil || sch.QueryType.Name == "" {
		return "", errors.New("introspection response names no query type")
	}

	var b strings.Builder

	b.WriteString("schema {\n")
	fmt.Fprintf(&b, "\tquery: %s\n", sch.QueryType.Name)
	if sch.MutationType != nil && sch.MutationType.Name != "" {
		fmt.Fprintf(&b, "\tmutation: %s\n", sch.MutationType.Name)
	}
	if sch.SubscriptionType != nil && sch.SubscriptionType.Name != "" {
		fmt.Fprintf(&b, "\tsubscription: %s\n", sch.SubscriptionType.Name)
	}
	b.WriteString("}\n")

	for _, typ := range sch.Types {
		if strings.HasPrefix(typ.Name, "__") || builtinScalars[typ.Name] {
			continue
		}
		switch typ.Kind {
		case "SCALAR":
			fmt.Fprintf(&b, "scalar %s\n", typ.Name)
		case "OBJECT", "INTERFACE":
			keyword := "type"
			if typ.Kind == "INTERFACE" {
				keyword = "interface"
			}
			fmt.Fprintf(&b, "%s %s", keyword, typ.Name)
			if len(typ.Interfaces) > 0 {
				var names []string
				for i := range typ.Interfaces {
					name, err := typeRefString(&typ.Interfaces[i])
					if err != nil {
						return "", errors.Wrapf(err, "type %s", typ.Name)
					}
					names = append(names, name)
				}
				b.WriteString(" implements " + strings.Join(names, " & "))
			}
			b.WriteString(" {\n")
			if err := writeFields(&b, typ.Fields); err != nil {
				return "", errors.Wrapf(err, "type %s", typ.Name)
			}
			b.WriteString("}\n")
		case "ENUM":
			fmt.Fprintf(&b, "enum %s {\n", typ.Name)
			for _, val := range typ.EnumValues {
				b.WriteString("\t" + val.Name + "\n")
			}
			b.WriteString("}\n")
		case "UNION":
			var members []string
			for i := range typ.PossibleTypes {
				name, err := typeRefString(&typ.PossibleTypes[i])
				if err != nil {
					return "", errors.Wrapf(err, "union %s", typ.Name)
				}
				members = append(members, name)
			}
			fmt.Fprintf(&b, "union %s = %s\n", typ.Name, strings.Join(members, " | "))
		case "INPUT_OBJECT":
			fmt.Fprintf(&b, "input %s {\n", typ.Name)
			for _, fld := range typ.InputFields {
				typStr, err := typeRefString(&fld.Type)
				if err != nil {
					return "", errors.Wrapf(err, "input %s", typ.Name)
				}
				fmt.Fprintf(&b, "\t%s: %s\n", fld.Name, typStr)
			}
			b.WriteString("}\n")
		}
	}

	return b.String(), nil
}
