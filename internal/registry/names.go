package registry

import (
	"fmt"
	"regexp"
	"strings"
)

// DefaultNamespace is used when a package name carries no namespace.
const DefaultNamespace = "climate"

var namePart = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)

// PackageName identifies a package as namespace/name.
type PackageName struct {
	Namespace string
	Name      string
}

func (p PackageName) String() string { return p.Namespace + "/" + p.Name }

// ParsePackageName parses "namespace/name" or a bare "name".
func ParsePackageName(s string) (PackageName, error) {
	s = strings.TrimSpace(s)
	ns, name, found := strings.Cut(s, "/")
	if !found {
		ns, name = DefaultNamespace, s
	}
	for _, part := range []string{ns, name} {
		if !namePart.MatchString(part) {
			return PackageName{}, fmt.Errorf("%w: invalid package name %q", ErrInvalidPackage, s)
		}
	}
	return PackageName{Namespace: ns, Name: name}, nil
}

// Location is a parsed registry URL.
type Location struct {
	Bucket string // set for s3:// registries
	Prefix string
	Path   string // set for local registries
}

// Remote reports whether the registry lives in object storage. Pushing is
// enabled by default for remote registries only.
func (l Location) Remote() bool { return l.Bucket != "" }

func (l Location) String() string {
	if l.Remote() {
		if l.Prefix == "" {
			return "s3://" + l.Bucket
		}
		return "s3://" + l.Bucket + "/" + l.Prefix
	}
	return l.Path
}

// ParseRegistryURL parses s3://bucket[/prefix] or a local directory path.
func ParseRegistryURL(raw string) (Location, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Location{}, fmt.Errorf("registry url is empty")
	}
	rest, ok := strings.CutPrefix(raw, "s3://")
	if !ok {
		return Location{Path: strings.TrimPrefix(raw, "file://")}, nil
	}
	bucket, prefix, _ := strings.Cut(rest, "/")
	if err := ValidateBucketName(bucket); err != nil {
		return Location{}, err
	}
	return Location{Bucket: bucket, Prefix: strings.Trim(prefix, "/")}, nil
}

// ValidateBucketName applies the S3 bucket naming rules.
func ValidateBucketName(name string) error {
	if len(name) < 3 || len(name) > 63 {
		return fmt.Errorf("bucket name %q must be 3-63 characters", name)
	}
	for _, r := range name {
		ok := (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '-' || r == '.'
		if !ok {
			return fmt.Errorf("bucket name %q may contain only letters, numbers, hyphens and periods", name)
		}
	}
	if strings.HasPrefix(name, "-") || strings.HasSuffix(name, "-") {
		return fmt.Errorf("bucket name %q cannot start or end with a hyphen", name)
	}
	for _, bad := range []string{"..", "-.", ".-"} {
		if strings.Contains(name, bad) {
			return fmt.Errorf("bucket name %q cannot contain %q", name, bad)
		}
	}
	return nil
}
