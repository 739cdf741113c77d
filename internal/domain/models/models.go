package models

// All 返回需要迁移的全部模型
func All() []interface{} {
	return []interface{}{
		&User{},
		&Property{},
		&Zone{},
		&Guard{},
		&ContactList{},
		&SOP{},
		&Incident{},
		&Dispatch{},
		&AuditLog{},
	}
}
