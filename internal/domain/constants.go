package domain

const (
	RoleMember   = "MEMBER"
	RoleOperator = "OPERATOR"
)

const (
	DirectoryMySQL = "mysql"
	DirectoryRedis = "redis"
)

const (
	GPSSourceNMEA = "nmea"
	GPSSourceMQTT = "mqtt"
	GPSSourceNone = "none"
)
