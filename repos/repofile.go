package repos

import (
	"strings"

	"gopkg.in/ini.v1"

	"github.com/zifproj/zif"
	"github.com/zifproj/zif/config"
	"github.com/zifproj/zif/storeremote"
)

// ParseRepoFile parses one .repo key-value file into a [storeremote.Options]
// per [section]. Recognized keys: name (required; $releasever/$basearch are
// expanded), enabled (default true), baseurl (semicolon-separated list),
// mirrorlist, metalink, mediaid, metadata_expire, gpgcheck, gpgkey.
//
// Two compatibility quirks are preserved: a mirrorlist value containing
// "metalink?" is promoted to metalink when no metalink key is present, and
// metalink is ignored entirely when baseurl is also set. Both live in
// [storeremote.New] so ad-hoc construction gets them too.
func ParseRepoFile(path string, cfg *config.Configuration) ([]storeremote.Options, error) {
	f, err := ini.LoadSources(ini.LoadOptions{IgnoreInlineComment: true}, path)
	if err != nil {
		return nil, &zif.Error{Op: "repos.ParseRepoFile", Kind: zif.ErrMalformed, Inner: err}
	}

	cacheRoot, _ := cfg.GetString("cachedir")
	network, _ := cfg.GetBool("network")
	timeout, _ := cfg.GetDuration("connection_timeout")
	retries, _ := cfg.GetUint("retries")
	throttle, _ := cfg.GetUint("throttle")
	defaultExpire, _ := cfg.GetDuration("metadata_expire")

	var out []storeremote.Options
	for _, sec := range f.Sections() {
		if sec.Name() == ini.DefaultSection {
			continue
		}
		if !sec.HasKey("name") {
			return nil, &zif.Error{Op: "repos.ParseRepoFile", Kind: zif.ErrMalformed,
				Message: "section " + sec.Name() + " has no name key"}
		}

		enabled := true
		if sec.HasKey("enabled") {
			enabled = config.BooleanFromText(sec.Key("enabled").String())
		}
		expire := defaultExpire
		if sec.HasKey("metadata_expire") {
			if d, err := config.ParseDuration(sec.Key("metadata_expire").String()); err == nil {
				expire = d
			}
		}

		var baseurls []string
		for _, u := range strings.Split(sec.Key("baseurl").String(), ";") {
			u = strings.TrimSpace(cfg.ExpandSubstitutions(u))
			if u != "" {
				baseurls = append(baseurls, u)
			}
		}

		out = append(out, storeremote.Options{
			ID:          sec.Name(),
			DisplayName: cfg.ExpandSubstitutions(sec.Key("name").String()),
			RepoFile:    path,
			CacheDir:    cacheRoot,
			BaseURLs:    baseurls,
			Mirrorlist:  cfg.ExpandSubstitutions(sec.Key("mirrorlist").String()),
			Metalink:    cfg.ExpandSubstitutions(sec.Key("metalink").String()),
			MediaID:     sec.Key("mediaid").String(),
			Pubkey:      cfg.ExpandSubstitutions(sec.Key("gpgkey").String()),
			GPGCheck:    config.BooleanFromText(sec.Key("gpgcheck").String()),
			Enabled:     enabled,
			MetadataExp: expire,
			Retries:     int(retries),
			Throttle:    int(throttle),
			Network:     network,
			Timeout:     timeout,
		})
	}
	return out, nil
}
