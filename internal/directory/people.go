package directory

import "github.com/workhub-social/chatsync/internal/model"

// ApplyFollow folds a follow change into viewerID's people lists. An added
// follow goes to the front of the matching list; a removed one is dropped.
// Changes between other users leave the lists as they are.
func ApplyFollow(people model.People, viewerID string, f *model.Follow, added bool) model.People {
	out := model.People{
		Followers: append([]model.Profile{}, people.Followers...),
		Following: append([]model.Profile{}, people.Following...),
	}
	if f.FolloweeID == viewerID {
		out.Followers = applyEntry(out.Followers, profileOr(f.Follower, f.FollowerID), added)
	}
	if f.FollowerID == viewerID {
		out.Following = applyEntry(out.Following, profileOr(f.Followee, f.FolloweeID), added)
	}
	return out
}

// ApplyPeopleProfile refreshes p wherever it appears in the lists.
func ApplyPeopleProfile(people model.People, p *model.Profile) model.People {
	out := model.People{
		Followers: append([]model.Profile{}, people.Followers...),
		Following: append([]model.Profile{}, people.Following...),
	}
	for _, list := range [][]model.Profile{out.Followers, out.Following} {
		for i := range list {
			if list[i].ID == p.ID {
				list[i] = *p
			}
		}
	}
	return out
}

func profileOr(p *model.Profile, id string) model.Profile {
	if p != nil {
		return *p
	}
	return model.Profile{ID: id}
}

func applyEntry(list []model.Profile, p model.Profile, added bool) []model.Profile {
	out := make([]model.Profile, 0, len(list)+1)
	if added {
		out = append(out, p)
	}
	for _, existing := range list {
		if existing.ID != p.ID {
			out = append(out, existing)
		}
	}
	return out
}
