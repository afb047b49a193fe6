package keepass

import "github.com/impl/karp/client"

// group mirrors the subset of KeePassRPC's Group JSON shape this module
// navigates: a uuid, a title, and (only when returned by GetChildGroups)
// its own children.
type group struct {
	UUID        string  `json:"uuid"`
	Title       string  `json:"title"`
	ChildGroups []group `json:"childGroups,omitempty"`
}

// otherField is one of a login's extra form fields beyond username/password.
type otherField struct {
	Name        string `json:"name"`
	DisplayName string `json:"displayName"`
	Value       string `json:"value"`
	Type        string `json:"type"`
}

// login mirrors the subset of KeePassRPC's Entry JSON shape FindLogins and
// GetAllChildEntries return.
type login struct {
	UniqueID            string       `json:"uniqueID"`
	Title               string       `json:"title"`
	URLs                []string     `json:"urls,omitempty"`
	UsernameValue       string       `json:"usernameValue,omitempty"`
	UsernameDisplayName string       `json:"usernameDisplayName,omitempty"`
	PasswordValue       string       `json:"passwordValue,omitempty"`
	PasswordDisplayName string       `json:"passwordDisplayName,omitempty"`
	OtherFields         []otherField `json:"otherFields,omitempty"`
}

func otherFieldType(t string) client.FormFieldType {
	switch t {
	case "select":
		return client.FormFieldSelect
	case "radio":
		return client.FormFieldRadio
	case "checkbox":
		return client.FormFieldCheckbox
	default:
		return client.FormFieldText
	}
}

// toEntry converts a login into the common Entry shape, with parent set to
// the group path the caller resolved it under.
func (l login) toEntry(parent string) client.Entry {
	fields := make([]client.FormField, 0, 2+len(l.OtherFields))
	if l.UsernameValue != "" || l.UsernameDisplayName != "" {
		name := l.UsernameDisplayName
		if name == "" {
			name = "Username"
		}
		fields = append(fields, client.FormField{Type: client.FormFieldUsername, DisplayName: name, Value: l.UsernameValue})
	}
	if l.PasswordValue != "" || l.PasswordDisplayName != "" {
		name := l.PasswordDisplayName
		if name == "" {
			name = "Password"
		}
		fields = append(fields, client.FormField{Type: client.FormFieldPassword, DisplayName: name, Value: l.PasswordValue})
	}
	for _, f := range l.OtherFields {
		fields = append(fields, client.FormField{Type: otherFieldType(f.Type), DisplayName: f.DisplayName, Value: f.Value})
	}
	return client.Entry{ID: l.UniqueID, Parent: parent, Title: l.Title, Fields: fields}
}
