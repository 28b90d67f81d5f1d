package auth

import (
	"net"
	"strings"

	"github.com/biasharahub/biashara/internal/models"
)

// RouteClass is how the resolver treats a request path.
type RouteClass int

const (
	ClassPublic RouteClass = iota
	ClassStatic
	ClassPlatform
	ClassTenant
	ClassTenantContext
)

func (c RouteClass) String() string {
	switch c {
	case ClassStatic:
		return "static"
	case ClassPlatform:
		return "platform-protected"
	case ClassTenant:
		return "tenant-protected"
	case ClassTenantContext:
		return "tenant-context-only"
	default:
		return "public"
	}
}

// Always public, with or without a tenant subdomain.
var publicPrefixes = []string{
	"/auth/", "/login", "/health", "/metrics", "/webhooks/", "/tenants/register", "/ai/chat",
}

var platformPrefixes = []string{"/admin", "/sales", "/api/platform"}

var tenantAreas = []string{"dashboard", "settings", "api"}

// ExtractSubdomain returns the tenant label of host under baseDomain, or "" when the
// host does not name a tenant.
func ExtractSubdomain(host, baseDomain string) string {
	host = strings.ToLower(strings.TrimSpace(host))
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	host = strings.TrimSuffix(host, ".")
	baseDomain = strings.ToLower(strings.TrimSuffix(baseDomain, "."))

	if host == "" || host == "localhost" || net.ParseIP(strings.Trim(host, "[]")) != nil {
		return ""
	}
	if baseDomain == "" || host == baseDomain || !strings.HasSuffix(host, "."+baseDomain) {
		return ""
	}

	label := strings.TrimSuffix(host, "."+baseDomain)
	if strings.Contains(label, ".") || models.IsReservedSubdomain(label) {
		return ""
	}
	return label
}

// Classify decides the route class. subdomain is the host tenant; when it is empty a
// /{tenant}/dashboard style path may still name one, returned as pathTenant.
func Classify(path, subdomain string) (class RouteClass, pathTenant string) {
	if path == "" {
		path = "/"
	}

	if isStatic(path) {
		return ClassStatic, ""
	}
	for _, p := range publicPrefixes {
		if hasPathPrefix(path, strings.TrimSuffix(p, "/")) {
			return ClassPublic, ""
		}
	}
	for _, p := range platformPrefixes {
		if hasPathPrefix(path, p) {
			return ClassPlatform, ""
		}
	}
	if hasPathPrefix(path, "/api/tenant") {
		return ClassTenant, ""
	}

	if subdomain != "" {
		first, _ := firstSegment(path)
		for _, area := range tenantAreas {
			if first == area {
				return ClassTenant, ""
			}
		}
		return ClassTenantContext, ""
	}

	first, rest := firstSegment(path)
	area, _ := firstSegment(rest)
	if first != "" && area != "" && !models.IsReservedSubdomain(first) && models.ValidateSubdomain(first) == nil {
		for _, a := range tenantAreas {
			if area == a {
				return ClassTenant, first
			}
		}
	}
	return ClassPublic, ""
}

func isStatic(path string) bool {
	if hasPathPrefix(path, "/_next") || hasPathPrefix(path, "/static") {
		return true
	}
	return strings.Contains(path, ".")
}

// hasPathPrefix matches whole segments: /admin matches /admin and /admin/x but not /administrator.
func hasPathPrefix(path, prefix string) bool {
	if !strings.HasPrefix(path, prefix) {
		return false
	}
	return len(path) == len(prefix) || path[len(prefix)] == '/' || strings.HasSuffix(prefix, "/")
}

func firstSegment(path string) (segment, rest string) {
	path = strings.TrimPrefix(path, "/")
	segment, rest, _ = strings.Cut(path, "/")
	return segment, "/" + rest
}

func isAPIPath(path string) bool {
	return hasPathPrefix(path, "/api") || strings.Contains(path, "/api/")
}
