package seeder

// Defaults seeds a demo workspace owned by uid.
func Defaults(uid string) []Seeder {
	return []Seeder{
		ProjectsSeeder{UID: uid},
		CampaignSeeder{UID: uid},
	}
}
