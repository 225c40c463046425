package knowledge

// defaultData returns the built-in knowledge base used when no persisted
// store exists yet. Keys and keywords mirror the troubleshooting guides the
// assistant ships with.
func defaultData() Data {
	return Data{
		QuickSolutions: map[string]Entry{
			"outofmemoryerror": {
				Description: "Java heap space exhausted",
				Solutions: []string{
					"Increase JVM heap size with -Xmx parameter",
					"Optimize memory usage in application code",
					"Check for memory leaks",
					"Use memory profiling tools",
				},
				Keywords: []string{"memory", "heap", "oom", "outofmemory"},
			},
			"connection_refused": {
				Description: "Service not accepting connections",
				Solutions: []string{
					"Check if the service is running with systemctl status",
					"Verify port is not blocked by firewall",
					"Check service configuration",
					"Restart the service if necessary",
				},
				Keywords: []string{"connection", "refused", "connect", "port"},
			},
			"timeout_error": {
				Description: "Request or operation timed out",
				Solutions: []string{
					"Increase timeout values in configuration",
					"Check network connectivity and latency",
					"Monitor server performance and load",
					"Optimize slow operations",
				},
				Keywords: []string{"timeout", "timed", "slow", "latency"},
			},
			"permission_denied": {
				Description: "Insufficient permissions to access resource",
				Solutions: []string{
					"Check file/directory permissions with ls -la",
					"Verify user has appropriate access rights",
					"Use chmod to adjust permissions if needed",
					"Check SELinux context if applicable",
				},
				Keywords: []string{"permission", "denied", "access", "forbidden"},
			},
			"disk_space_full": {
				Description: "No space left on device",
				Solutions: []string{
					"Clean up old log files and temporary files",
					"Use df -h to check disk usage",
					"Implement log rotation",
					"Expand storage or add new disk",
				},
				Keywords: []string{"disk", "space", "full", "storage"},
			},
			"database_error": {
				Description: "Database connection or query issues",
				Solutions: []string{
					"Check database service status",
					"Verify connection parameters",
					"Check database locks and transactions",
					"Monitor database performance",
				},
				Keywords: []string{"database", "db", "sql", "query", "table"},
			},
		},
		CommonCommands: map[string][]string{
			"memory_check": {
				"free -h  # Check memory usage",
				"ps aux --sort=-%mem | head -10  # Top memory consumers",
				"cat /proc/meminfo  # Detailed memory info",
			},
			"disk_check": {
				"df -h  # Check disk space",
				"du -sh /* | sort -rh | head -10  # Large directories",
				"lsof +L1  # Find deleted files still open",
			},
			"process_check": {
				"ps aux  # All running processes",
				"top  # Real-time process monitor",
				"netstat -tulpn  # Network connections",
			},
			"log_analysis": {
				"tail -f /var/log/messages  # System messages",
				"journalctl -f  # Systemd logs",
				"grep -i error /var/log/*  # Search for errors",
			},
			"firewall": {
				"sudo firewall-cmd --list-all  # Check firewall rules",
				"sudo firewall-cmd --permanent --add-port=PORT/tcp  # Open port",
				"sudo firewall-cmd --reload  # Reload firewall",
			},
			"services": {
				"sudo systemctl status SERVICE  # Check service status",
				"sudo systemctl start SERVICE  # Start service",
				"sudo systemctl enable SERVICE  # Enable on boot",
			},
			"packages": {
				"sudo yum update  # Update packages",
				"sudo yum install PACKAGE  # Install package",
				"yum list installed | grep PACKAGE  # Check if installed",
			},
		},
	}
}

// errorExplanations maps well-known error identifiers to detailed
// explanations served by the explain endpoint.
var errorExplanations = map[string]string{
	"404":                "HTTP 404 Not Found - The requested resource could not be found on the server",
	"500":                "HTTP 500 Internal Server Error - The server encountered an unexpected condition",
	"timeout":            "Request timeout - The server took too long to respond to the request",
	"connection_refused": "Connection refused - The target server actively refused the connection",
	"segmentation_fault": "Segmentation fault - Program tried to access memory it doesn't have permission to access",
	"kernel_panic":       "Kernel panic - Critical system error that requires system restart",
}

// generalAdvice is returned when no entry matches a query. The variant is
// picked by scanning the query for a few domain terms.
const generalAdvice = `General troubleshooting steps:
1. Check system logs: journalctl -xe
2. Monitor resources: top, free -h, df -h
3. Verify services: systemctl status SERVICE_NAME
4. Check network: ping, netstat -tulpn
5. Review configuration files for recent changes`

const diskAdvice = `Disk troubleshooting: run df -h to check usage, clean up old logs and temporary files, and consider log rotation before expanding storage.`

const memoryAdvice = `Memory troubleshooting: run free -h and ps aux --sort=-%mem to find consumers, then check for leaks or raise limits.`

const connectionAdvice = `Connection troubleshooting: verify the service is running (systemctl status), check firewall rules, and confirm the port is listening with netstat -tulpn.`
