// Package icons maps the icon tags stored in editable content to the closed
// set of icons the site can render.
package icons

// Icon is a renderable icon identifier.
type Icon string

const (
	Download     Icon = "FaDownload"
	Clock        Icon = "FaClock"
	CheckCircle  Icon = "FaCheckCircle"
	Heart        Icon = "FaHeart"
	ShoppingCart Icon = "FaShoppingCart"
	Eye          Icon = "FaEye"
)

// Fallback is rendered for any tag outside the known set.
const Fallback = CheckCircle

var known = map[string]Icon{
	string(Download):     Download,
	string(Clock):        Clock,
	string(CheckCircle):  CheckCircle,
	string(Heart):        Heart,
	string(ShoppingCart): ShoppingCart,
	string(Eye):          Eye,
}

// Resolve returns the icon for tag, or Fallback when tag is unknown.
func Resolve(tag string) Icon {
	if ic, ok := known[tag]; ok {
		return ic
	}
	return Fallback
}

// All lists the selectable icons in display order.
func All() []Icon {
	return []Icon{Download, Clock, CheckCircle, Heart, ShoppingCart, Eye}
}
