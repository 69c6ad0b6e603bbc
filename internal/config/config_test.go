package config

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/medstack-ops/envctl/internal/errors"
)

func TestResolve_Domains(t *testing.T) {
	tests := []struct {
		kind  string
		route Route
		want  string
	}{
		{"production", RouteEMR, "clinic.example.com"},
		{"staging", RouteEMR, "staging-clinic.example.com"},
		{"dev", RouteEMR, "dev-clinic.example.com"},
		{"production", RouteVC, "vc.clinic.example.com"},
		{"test", RouteVC, "vc-test.clinic.example.com"},
		{"production", RouteVCBackend, "vcbknd.clinic.example.com"},
		{"staging", RouteVCBackend, "vcbknd-staging.clinic.example.com"},
		{"staging", RouteTelehealth, "telehealth-staging.clinic.example.com"},
		{"production", RouteCMS, "www.clinic.example.com"},
	}

	for _, tt := range tests {
		t.Run(tt.kind+"/"+string(tt.route), func(t *testing.T) {
			cfg, err := Resolve("clinic", tt.kind, "example.com")
			if err != nil {
				t.Fatalf("Resolve() error: %v", err)
			}
			if got := cfg.Domains[tt.route]; got != tt.want {
				t.Errorf("Domains[%s] = %q, want %q", tt.route, got, tt.want)
			}
		})
	}
}

func TestResolve_Deterministic(t *testing.T) {
	for _, kind := range Kinds {
		a, err := Resolve("clinic", string(kind), "example.com")
		if err != nil {
			t.Fatalf("Resolve(%s) error: %v", kind, err)
		}
		b, err := Resolve("clinic", string(kind), "example.com")
		if err != nil {
			t.Fatalf("Resolve(%s) error: %v", kind, err)
		}

		aJSON, _ := json.Marshal(a)
		bJSON, _ := json.Marshal(b)
		if string(aJSON) != string(bJSON) {
			t.Errorf("Resolve(%s) not deterministic:\n%s\n%s", kind, aJSON, bJSON)
		}
	}
}

func TestResolve_InvalidInput(t *testing.T) {
	tests := []struct {
		name       string
		project    string
		kind       string
		domainBase string
	}{
		{"unknown kind", "clinic", "qa", "example.com"},
		{"empty kind", "clinic", "", "example.com"},
		{"empty project", "", "dev", "example.com"},
		{"uppercase project", "Clinic", "dev", "example.com"},
		{"path traversal", "../etc", "dev", "example.com"},
		{"empty domain", "clinic", "dev", ""},
		{"bad domain", "clinic", "dev", "exa mple.com"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Resolve(tt.project, tt.kind, tt.domainBase)
			if err == nil {
				t.Fatal("Resolve() should fail")
			}
			if !errors.IsKind(err, errors.KindConfig) {
				t.Errorf("Resolve() error kind = %v, want config error", err)
			}
		})
	}
}

func TestResolve_NormalizesDomainBase(t *testing.T) {
	cfg, err := Resolve("clinic", "production", "Example.COM.")
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}
	if cfg.DomainBase != "example.com" {
		t.Errorf("DomainBase = %q, want %q", cfg.DomainBase, "example.com")
	}
}

func TestResolve_PortsAndNetworks(t *testing.T) {
	cfg, err := Resolve("clinic", "dev", "localhost")
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}

	if got := cfg.Port(ComponentProxy, PortAdmin); got != 3081 {
		t.Errorf("proxy admin port = %d, want 3081", got)
	}
	if got := cfg.Port(ComponentEMR, PortHTTP); got != 11080 {
		t.Errorf("emr http port = %d, want 11080", got)
	}
	if got := cfg.Port(ComponentCMS, PortHTTPS); got != 0 {
		t.Errorf("cms https port = %d, want 0", got)
	}

	want := Networks{Proxy: "clinic-dev-proxy", Frontend: "clinic-dev-frontend", Shared: "clinic-dev-shared"}
	if cfg.Networks != want {
		t.Errorf("Networks = %+v, want %+v", cfg.Networks, want)
	}
	if got := cfg.Networks.Name(NetworkShared); got != "clinic-dev-shared" {
		t.Errorf("Name(shared) = %q", got)
	}
	if got := cfg.ComposeProject(ComponentJitsi); got != "clinic-dev-jitsi" {
		t.Errorf("ComposeProject() = %q", got)
	}
}

func TestResolve_Variant(t *testing.T) {
	official, err := Resolve(OfficialProject, "production", "example.com")
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}
	if !official.IsOfficial() {
		t.Error("official project should select the official variant")
	}
	if got := official.FolderNames[ComponentEMR]; got != "openemr-official" {
		t.Errorf("FolderNames[openemr] = %q, want openemr-official", got)
	}
	if got := official.Port(ComponentEMR, PortHTTP); got != 8300 {
		t.Errorf("emr http port = %d, want 8300", got)
	}

	custom, err := Resolve("clinic", "production", "example.com")
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}
	if custom.IsOfficial() {
		t.Error("clinic project should select the custom variant")
	}
}

func TestEnvironmentConfig_ValidateRejectsDuplicates(t *testing.T) {
	cfg, err := Resolve("clinic", "dev", "example.com")
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}

	dupFolder := *cfg
	dupFolder.FolderNames = map[Component]string{ComponentEMR: "same", ComponentCMS: "same"}
	if err := dupFolder.Validate(); err == nil {
		t.Error("Validate() should reject duplicate folder names")
	}

	dupDomain := *cfg
	dupDomain.Domains = map[Route]string{RouteEMR: "a.example.com", RouteCMS: "a.example.com"}
	if err := dupDomain.Validate(); err == nil {
		t.Error("Validate() should reject duplicate domains")
	}

	dupPort := *cfg
	dupPort.ComponentPorts = map[Component]map[PortRole]int{
		ComponentEMR: {PortHTTP: 8080},
		ComponentCMS: {PortHTTP: 8080},
	}
	if err := dupPort.Validate(); err == nil {
		t.Error("Validate() should reject duplicate ports")
	}
}

func TestLabels(t *testing.T) {
	cfg, err := Resolve("clinic", "test", "example.com")
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}

	labels := cfg.ComponentLabels(ComponentJitsi)
	if labels[LabelProject] != "clinic" || labels[LabelEnvironment] != "test" || labels[LabelComponent] != "jitsi" {
		t.Errorf("ComponentLabels() = %v", labels)
	}
	if _, ok := cfg.Labels()[LabelComponent]; ok {
		t.Error("Labels() should not carry a component label")
	}
}

func TestClaims(t *testing.T) {
	cfg, err := Resolve("clinic", "dev", "localhost")
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}

	tests := []struct {
		name   string
		labels map[string]string
		want   bool
	}{
		{"unlabelled", nil, true},
		{"own labels", cfg.ComponentLabels(ComponentEMR), true},
		{"own compose project", map[string]string{LabelComposeProject: "clinic-dev-openemr"}, true},
		{"other project", map[string]string{LabelProject: "clinic-dev-openemr", LabelEnvironment: "dev"}, false},
		{"other kind", map[string]string{LabelProject: "clinic", LabelEnvironment: "staging"}, false},
		{"other component", map[string]string{LabelComponent: "jitsi"}, false},
		{"other compose project", map[string]string{LabelComposeProject: "clinic-dev-openemr-dev-openemr"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := cfg.Claims(ComponentEMR, tt.labels); got != tt.want {
				t.Errorf("Claims(%v) = %v, want %v", tt.labels, got, tt.want)
			}
		})
	}
}

func TestLoadSettingsFrom_Defaults(t *testing.T) {
	s, err := LoadSettingsFrom("", map[string]string{"ENVCTL_ROOT": "/srv/envctl"})
	if err != nil {
		t.Fatalf("LoadSettingsFrom() error: %v", err)
	}

	if s.SourcesDir != "/srv/envctl/sources" {
		t.Errorf("SourcesDir = %q", s.SourcesDir)
	}
	if s.EnvironmentsDir != "/srv/envctl/environments" {
		t.Errorf("EnvironmentsDir = %q", s.EnvironmentsDir)
	}
	if s.Environment != "dev" || s.Runtime != "auto" {
		t.Errorf("Environment/Runtime = %q/%q", s.Environment, s.Runtime)
	}
	if s.AuthAttempts != 5 || s.RemoveAttempts != 3 {
		t.Errorf("AuthAttempts/RemoveAttempts = %d/%d", s.AuthAttempts, s.RemoveAttempts)
	}
	if s.ProxyIdentity != DefaultProxyIdentity {
		t.Errorf("ProxyIdentity = %q", s.ProxyIdentity)
	}
}

func TestLoadSettingsFrom_FileUnderEnvironment(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, DefaultSettingsFile)
	writeFile(t, file, "ENVCTL_PROJECT=clinic\nENVCTL_DOMAIN_BASE=example.org\nENVCTL_READINESS_DELAY=45s\n")

	s, err := LoadSettingsFrom(file, map[string]string{"ENVCTL_DOMAIN_BASE": "example.com"})
	if err != nil {
		t.Fatalf("LoadSettingsFrom() error: %v", err)
	}

	if s.Project != "clinic" {
		t.Errorf("Project = %q, want clinic", s.Project)
	}
	if s.DomainBase != "example.com" {
		t.Errorf("DomainBase = %q, want process value example.com", s.DomainBase)
	}
	if s.ReadinessDelay.Seconds() != 45 {
		t.Errorf("ReadinessDelay = %v, want 45s", s.ReadinessDelay)
	}
}

func TestLoadSettingsFrom_MissingFileIgnored(t *testing.T) {
	if _, err := LoadSettingsFrom(filepath.Join(t.TempDir(), "absent.env"), nil); err != nil {
		t.Errorf("LoadSettingsFrom() error: %v", err)
	}
}

func TestLoadSettingsFrom_Invalid(t *testing.T) {
	tests := []struct {
		name string
		vars map[string]string
	}{
		{"runtime", map[string]string{"ENVCTL_RUNTIME": "lxc"}},
		{"attempts", map[string]string{"ENVCTL_AUTH_ATTEMPTS": "0"}},
		{"duration", map[string]string{"ENVCTL_REMOVE_DELAY": "soon"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := LoadSettingsFrom("", tt.vars); err == nil {
				t.Error("LoadSettingsFrom() should fail")
			}
		})
	}
}

func TestSettings_Paths(t *testing.T) {
	s, err := LoadSettingsFrom("", map[string]string{"ENVCTL_ROOT": "/srv"})
	if err != nil {
		t.Fatalf("LoadSettingsFrom() error: %v", err)
	}
	cfg, err := Resolve("clinic", "staging", "example.com")
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}

	envDir, err := s.EnvironmentDir(cfg)
	if err != nil || envDir != "/srv/environments/clinic-staging" {
		t.Errorf("EnvironmentDir() = %q, %v", envDir, err)
	}
	compDir, err := s.ComponentDir(cfg, ComponentJitsi)
	if err != nil || compDir != "/srv/environments/clinic-staging/jitsi-docker" {
		t.Errorf("ComponentDir() = %q, %v", compDir, err)
	}
	srcDir, err := s.SourceDir("../../etc")
	if err != nil || srcDir != "/srv/sources/etc" {
		t.Errorf("SourceDir() should stay in root, got %q, %v", srcDir, err)
	}
	if got := s.ControlPlaneURL(cfg); got != "http://127.0.0.1:1081" {
		t.Errorf("ControlPlaneURL() = %q", got)
	}

	s.ProxyURL = "https://npm.internal/"
	if got := s.ControlPlaneURL(cfg); got != "https://npm.internal" {
		t.Errorf("ControlPlaneURL() override = %q", got)
	}
}
