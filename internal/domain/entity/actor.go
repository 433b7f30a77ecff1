package entity

// Roles de la cadena de aprobación y despacho.
// HO y MD son los dos aprobadores humanos secuenciales de solicitudes estándar.
const (
	RoleHeadOfOperations = "head_of_operations"
	RoleMainDirector     = "main_director"
	RoleWarehouse        = "warehouse"
	RoleProduction       = "production"
	RoleSales            = "sales"
)

// Actor identidad del usuario que ejecuta una mutación.
// Llega desde fuera (token JWT); el core nunca autentica, solo la registra.
type Actor struct {
	UserID      string `json:"userId"`
	DisplayName string `json:"displayName"`
	Role        string `json:"role"`
}
