package graph

// Resource names one Microsoft Graph endpoint read by the dashboard.
type Resource string

const (
	ResourceUserProfile               Resource = "user_profile"
	ResourceDeviceConfigurations      Resource = "device_configurations"
	ResourceCompliancePolicies        Resource = "compliance_policies"
	ResourceManagedDevices            Resource = "managed_devices"
	ResourceMobileApps                Resource = "mobile_apps"
	ResourceEnrollmentConfigurations  Resource = "enrollment_configurations"
	ResourceConditionalAccessPolicies Resource = "conditional_access_policies"
)

var resourcePaths = map[Resource]string{
	ResourceUserProfile:               "/me",
	ResourceDeviceConfigurations:      "/deviceManagement/deviceConfigurations",
	ResourceCompliancePolicies:        "/deviceManagement/deviceCompliancePolicies",
	ResourceManagedDevices:            "/deviceManagement/managedDevices",
	ResourceMobileApps:                "/deviceManagement/mobileApps",
	ResourceEnrollmentConfigurations:  "/deviceManagement/deviceEnrollmentConfigurations",
	ResourceConditionalAccessPolicies: "/identity/conditionalAccess/policies",
}

var resourceLabels = map[Resource]string{
	ResourceUserProfile:               "user profile",
	ResourceDeviceConfigurations:      "device configurations",
	ResourceCompliancePolicies:        "compliance policies",
	ResourceManagedDevices:            "managed devices",
	ResourceMobileApps:                "mobile apps",
	ResourceEnrollmentConfigurations:  "enrollment configurations",
	ResourceConditionalAccessPolicies: "conditional access policies",
}

// Collections lists every collection resource in display order.
var Collections = []Resource{
	ResourceDeviceConfigurations,
	ResourceCompliancePolicies,
	ResourceManagedDevices,
	ResourceMobileApps,
	ResourceEnrollmentConfigurations,
	ResourceConditionalAccessPolicies,
}

// Path returns the fixed path of r relative to the Graph base URL.
func (r Resource) Path() string {
	return resourcePaths[r]
}

// Label returns a human readable name for r.
func (r Resource) Label() string {
	if label, ok := resourceLabels[r]; ok {
		return label
	}
	return string(r)
}

// Known reports whether r has a fixed path.
func (r Resource) Known() bool {
	_, ok := resourcePaths[r]
	return ok
}

// IsCollection reports whether r returns a paged envelope.
func (r Resource) IsCollection() bool {
	return r.Known() && r != ResourceUserProfile
}
